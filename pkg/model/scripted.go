package model

import "context"

// ScriptedProvider replays a fixed sequence of chunks. It backs offline
// runs and tests where a live endpoint is unavailable.
type ScriptedProvider struct {
	Chunks []string
}

// ID returns the provider identifier.
func (p *ScriptedProvider) ID() string {
	return "scripted"
}

// GenerateStreaming emits each scripted chunk in order followed by a
// Done chunk, aborting early on context cancellation.
func (p *ScriptedProvider) GenerateStreaming(ctx context.Context, _ []Message, _ Config, onChunk ChunkHandler) error {
	for _, content := range p.Chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onChunk(Chunk{Content: content}); err != nil {
			return err
		}
	}
	return onChunk(Chunk{Done: true})
}
