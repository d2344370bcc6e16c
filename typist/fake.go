package typist

import "sync"

// Fake records everything a Sink would have emitted. BlockNext makes
// the next Type call park until Cancel releases it, which lets tests
// interrupt an in-flight injection deterministically.
type Fake struct {
	mu         sync.Mutex
	typed      []string
	enters     int
	backspaces int
	cancels    int

	typeErr  error
	enterErr error
	release  chan struct{}
	block    bool
}

func NewFake() *Fake {
	return &Fake{}
}

// FailWith makes every subsequent Type return err. Pass nil to clear.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	f.typeErr = err
	f.mu.Unlock()
}

// FailEnter makes every subsequent PressEnter return err.
func (f *Fake) FailEnter(err error) {
	f.mu.Lock()
	f.enterErr = err
	f.mu.Unlock()
}

// BlockNext parks the next Type call until Cancel is called.
func (f *Fake) BlockNext() {
	f.mu.Lock()
	f.block = true
	f.mu.Unlock()
}

func (f *Fake) Type(text string) error {
	f.mu.Lock()
	if f.typeErr != nil {
		err := f.typeErr
		f.mu.Unlock()
		return err
	}
	f.typed = append(f.typed, text)
	var release chan struct{}
	if f.block {
		f.block = false
		release = make(chan struct{})
		f.release = release
	}
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return nil
}

func (f *Fake) Cancel() {
	f.mu.Lock()
	f.cancels++
	if f.release != nil {
		close(f.release)
		f.release = nil
	}
	f.mu.Unlock()
}

func (f *Fake) PressEnter() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enterErr != nil {
		return f.enterErr
	}
	f.enters++
	return nil
}

func (f *Fake) Backspace(n int) error {
	f.mu.Lock()
	f.backspaces += n
	f.mu.Unlock()
	return nil
}

func (f *Fake) Typed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.typed...)
}

func (f *Fake) Enters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enters
}

func (f *Fake) Backspaces() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backspaces
}

func (f *Fake) Cancels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}
