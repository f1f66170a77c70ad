package body

// GenerateFunc produces the next part of a generated body into p.
type GenerateFunc func(p []byte) (n int, state ChunkState, err error)

type generatorSource struct {
	length int64
	gen    GenerateFunc
	open   func() GenerateFunc
}

// Generator returns a replayable source driven by functions from open.
// Every replay calls open again for a new generation.
func Generator(length int64, open func() GenerateFunc) Source {
	return &generatorSource{length: length, gen: open(), open: open}
}

type streamSource struct {
	length int64
	gen    GenerateFunc
}

// Stream returns a one-shot source driven by gen.
func Stream(length int64, gen GenerateFunc) Source {
	return &streamSource{length: length, gen: gen}
}

func (g *generatorSource) ContentLength() int64 { return g.length }

func (g *generatorSource) TransferTo(p []byte) (int, ChunkState, error) { return g.gen(p) }

func (g *generatorSource) Close() error { return nil }

func (g *generatorSource) Replay() (Source, error) {
	return Generator(g.length, g.open), nil
}

func (s *streamSource) ContentLength() int64 { return s.length }

func (s *streamSource) TransferTo(p []byte) (int, ChunkState, error) { return s.gen(p) }

func (s *streamSource) Close() error { return nil }
