package obexfs

// fakeLink is an in-memory Link: a scripted queue of response
// packets returned in order, recording every Send for assertions.
type fakeLink struct {
	responses [][]byte
	sent      [][]byte
	testErr   error
	initErr   error
}

func (f *fakeLink) Test(rounds int) error { return f.testErr }
func (f *fakeLink) Initiate() error       { return f.initErr }
func (f *fakeLink) Close() error          { return nil }

func (f *fakeLink) Send(buf []byte) error {
	cp := append([]byte(nil), buf...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeLink) Recv(maxlen int) ([]byte, error) {
	if len(f.responses) == 0 {
		return nil, errShortFake
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

var errShortFake = fakeErr("fake link: no more scripted responses")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

// okResponse builds a minimal 0xa0/0x90-style response packet with no
// headers, used where the test doesn't care about response content.
func okResponse(op byte) []byte {
	return []byte{op, 0x00, 0x03}
}

// connectedLink returns a fakeLink pre-wired so handshake() succeeds
// via the fast path (Test succeeds immediately, no Connect needed).
func connectedLink() *fakeLink {
	return &fakeLink{testErr: nil}
}
