//go:build linux

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"

	"github.com/AreteDriver/EVE-Overview/internal/logger"
)

var modifierMap = map[string]hotkey.Modifier{
	"ctrl":  hotkey.ModCtrl,
	"shift": hotkey.ModShift,
	"alt":   hotkey.Mod1,
	"super": hotkey.Mod4,
}

var keyMap = map[string]hotkey.Key{
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,

	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,

	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3,
	"f4": hotkey.KeyF4, "f5": hotkey.KeyF5, "f6": hotkey.KeyF6,
	"f7": hotkey.KeyF7, "f8": hotkey.KeyF8, "f9": hotkey.KeyF9,
	"f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
	"f13": hotkey.KeyF13, "f14": hotkey.KeyF14, "f15": hotkey.KeyF15,
	"f16": hotkey.KeyF16, "f17": hotkey.KeyF17, "f18": hotkey.KeyF18,
	"f19": hotkey.KeyF19, "f20": hotkey.KeyF20,

	"space":  hotkey.KeySpace,
	"tab":    hotkey.KeyTab,
	"return": hotkey.KeyReturn,
	"escape": hotkey.KeyEscape,
	"delete": hotkey.KeyDelete,
	"up":     hotkey.KeyUp,
	"down":   hotkey.KeyDown,
	"left":   hotkey.KeyLeft,
	"right":  hotkey.KeyRight,
}

// X11Listener grabs global key combinations through the display
// server. One grab per binding; every binding change requires a full
// Stop/Start cycle from the registry.
type X11Listener struct {
	mu    sync.Mutex
	grabs []*hotkey.Hotkey
	done  chan struct{}
}

// NewX11Listener creates an idle listener.
func NewX11Listener() *X11Listener {
	return &X11Listener{}
}

func comboToGrab(c Combo) (mods []hotkey.Modifier, key hotkey.Key, err error) {
	tokens, keyTok, err := c.Split()
	if err != nil {
		return nil, 0, err
	}
	for _, tok := range tokens {
		mod, ok := modifierMap[tok]
		if !ok {
			return nil, 0, fmt.Errorf("unsupported modifier %q", tok)
		}
		mods = append(mods, mod)
	}
	k, ok := keyMap[keyTok]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported key %q", keyTok)
	}
	return mods, k, nil
}

// Start registers one grab per binding and fans keydown events into
// onTrigger. Bindings that cannot be grabbed are skipped with a log;
// they never abort the rest of the set.
func (l *X11Listener) Start(bindings []Binding, onTrigger func(name string)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := logger.WithComponent("hotkey-x11")
	l.done = make(chan struct{})

	for _, b := range bindings {
		mods, key, err := comboToGrab(b.Combo)
		if err != nil {
			log.Warn().Err(err).Str("name", b.Name).Msg("Skipping unbindable hotkey")
			continue
		}

		hk := hotkey.New(mods, key)
		if err := hk.Register(); err != nil {
			log.Warn().Err(err).
				Str("name", b.Name).
				Str("combo", b.Combo.String()).
				Msg("Failed to grab hotkey")
			continue
		}
		l.grabs = append(l.grabs, hk)

		go func(name string, hk *hotkey.Hotkey, done chan struct{}) {
			for {
				select {
				case <-done:
					return
				case _, ok := <-hk.Keydown():
					if !ok {
						return
					}
					onTrigger(name)
				}
			}
		}(b.Name, hk, l.done)
	}

	log.Info().Int("grabs", len(l.grabs)).Msg("Hotkey listener started")
	return nil
}

// Stop releases every grab.
func (l *X11Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done != nil {
		close(l.done)
		l.done = nil
	}
	for _, hk := range l.grabs {
		if err := hk.Unregister(); err != nil {
			logger.WithComponent("hotkey-x11").Debug().Err(err).Msg("Failed to release grab")
		}
	}
	l.grabs = nil
}
