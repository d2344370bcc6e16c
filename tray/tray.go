// Package tray publishes controller state to a system tray icon with a
// small menu: copy last transcript, pause dictation, quit.
package tray

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/systray"

	"voxkey/control"
)

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once
	ready     chan struct{}

	copyLastFn func()
	pauseFn    func(bool)

	mCopy  *systray.MenuItem
	mPause *systray.MenuItem
	mQuit  *systray.MenuItem

	stateMu   sync.Mutex
	lastState control.State
	warning   bool
)

func OnCopyLast(fn func())  { copyLastFn = fn }
func OnPause(fn func(bool)) { pauseFn = fn }

// Init starts the tray loop and returns a channel closed when the user
// picks Quit or the tray shuts down.
func Init() <-chan struct{} {
	ready = make(chan struct{})
	go systray.Run(onReady, onExit)
	return quitCh
}

// Quit tears the tray down; safe to call more than once.
func Quit() {
	closeOnce.Do(func() { close(quitCh) })
	systray.Quit()
}

func onReady() {
	systray.SetTemplateIcon(iconIdleHi, iconIdle)
	systray.SetTooltip("voxkey – idle")

	mCopy = systray.AddMenuItem("Copy Last Transcript", "Copy the last typed transcript to the clipboard")
	mCopy.Disable()

	systray.AddSeparator()
	mPause = systray.AddMenuItemCheckbox("Pause Dictation", "Ignore the dictation hotkey", false)
	systray.AddSeparator()
	mQuit = systray.AddMenuItem("Quit", "Quit voxkey")

	go clickLoop()
	close(ready)
}

// clickLoop owns all menu interaction; fyne's systray delivers clicks
// on per-item channels.
func clickLoop() {
	for {
		select {
		case <-mCopy.ClickedCh:
			if copyLastFn != nil {
				copyLastFn()
			}
		case <-mPause.ClickedCh:
			if mPause.Checked() {
				mPause.Uncheck()
			} else {
				mPause.Check()
			}
			if pauseFn != nil {
				pauseFn(mPause.Checked())
			}
		case <-mQuit.ClickedCh:
			Quit()
			return
		case <-quitCh:
			return
		}
	}
}

// SetState updates the icon and tooltip for a controller transition.
func SetState(s control.State) {
	if ready == nil {
		return
	}
	<-ready

	stateMu.Lock()
	lastState = s
	warning = false
	stateMu.Unlock()

	switch s {
	case control.StateListening:
		systray.SetIcon(iconRecHi)
	case control.StateProcessing, control.StateTyping:
		systray.SetIcon(iconBusyHi)
	case control.StateError:
		systray.SetIcon(iconWarnHi)
	default:
		systray.SetTemplateIcon(iconIdleHi, iconIdle)
	}
	systray.SetTooltip("voxkey – " + s.String())
}

// SetWarning overlays the warning badge while a listening session has
// gone silent. Ignored outside Listening.
func SetWarning(on bool) {
	if ready == nil {
		return
	}
	<-ready

	stateMu.Lock()
	if lastState != control.StateListening {
		stateMu.Unlock()
		return
	}
	warning = on
	stateMu.Unlock()

	if on {
		systray.SetIcon(iconWarnHi)
	} else {
		systray.SetIcon(iconRecHi)
	}
}

// SetLastTranscript enables the copy item and shows the utterance
// duration next to it.
func SetLastTranscript(text string, dur time.Duration) {
	if ready == nil || text == "" {
		return
	}
	<-ready
	mCopy.SetTitle(fmt.Sprintf("Copy Last Transcript (%.1fs)", dur.Seconds()))
	mCopy.SetTooltip(text)
	mCopy.Enable()
}

func onExit() {
	closeOnce.Do(func() { close(quitCh) })
}
