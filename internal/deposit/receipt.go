package deposit

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrReleased is returned when a preview is released twice. The wizard owns
// the release points (replace, clear, reset, teardown) and hits each handle
// exactly once.
var ErrReleased = errors.New("deposit: receipt preview already released")

// Receipt holds the uploaded proof-of-payment image plus a temp-file preview,
// the local stand-in for the object URL the browser UI hands to the <img>.
type Receipt struct {
	Name string
	Data []byte

	previewPath string
	released    bool
}

// NewReceipt materializes the preview file alongside the attachment bytes.
func NewReceipt(name string, data []byte) (*Receipt, error) {
	f, err := os.CreateTemp("", "lky-receipt-*"+filepath.Ext(name))
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, err
	}
	return &Receipt{Name: name, Data: data, previewPath: f.Name()}, nil
}

// PreviewPath returns the preview resource, empty once released.
func (r *Receipt) PreviewPath() string {
	if r == nil || r.released {
		return ""
	}
	return r.previewPath
}

// Release frees the preview resource. Releasing twice is a programming error
// and is reported rather than masked.
func (r *Receipt) Release() error {
	if r == nil {
		return nil
	}
	if r.released {
		return ErrReleased
	}
	r.released = true
	if r.previewPath == "" {
		return nil
	}
	err := os.Remove(r.previewPath)
	r.previewPath = ""
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
