// Package clipboard delivers final transcripts: copy always, paste optional.
package clipboard

import (
	"runtime"
	"sync"
	"time"

	cb "github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

var (
	kbMu    sync.Mutex
	kb      keybd_event.KeyBonding
	kbReady bool
)

// Init prepares the synthetic-keystroke backend. On linux this opens
// /dev/uinput, which needs group write access.
func Init() error {
	kbMu.Lock()
	defer kbMu.Unlock()

	b, err := keybd_event.NewKeyBonding()
	if err != nil {
		return err
	}
	if runtime.GOOS == "linux" {
		// uinput devices are not usable immediately after creation.
		time.Sleep(2 * time.Second)
	}
	kb = b
	kbReady = true
	return nil
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

func Read() (string, error) {
	return cb.ReadAll()
}

// Paste injects the platform paste chord into the focused window.
func Paste() error {
	kbMu.Lock()
	defer kbMu.Unlock()
	if !kbReady {
		return nil
	}

	kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	defer func() {
		kb.HasSuper(false)
		kb.HasCTRL(false)
		kb.Clear()
	}()
	return kb.Launching()
}
