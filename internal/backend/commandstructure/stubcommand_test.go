package commandstructure

// stubCommand records how often it ran so tests can check pipeline ordering
// and short-circuiting.
type stubCommand struct {
	name  string
	run   func([]byte) ([]byte, error)
	calls int
}

func (s *stubCommand) Name() string { return s.name }

func (s *stubCommand) Execute(imageData []byte) ([]byte, error) {
	s.calls++
	if s.run == nil {
		return imageData, nil
	}
	return s.run(imageData)
}

func newStubCommand(name string) *stubCommand {
	return &stubCommand{name: name}
}

func newFailingStubCommand(name string, err error) *stubCommand {
	return &stubCommand{
		name: name,
		run: func([]byte) ([]byte, error) {
			return nil, err
		},
	}
}
