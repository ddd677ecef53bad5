//go:build windows

package primary

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"

	"kvmhost/internal/input"
	"kvmhost/internal/keys"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	kernel32                 = windows.NewLazySystemDLL("kernel32.dll")
	procRegisterClassEx      = user32.NewProc("RegisterClassExW")
	procCreateWindowEx       = user32.NewProc("CreateWindowExW")
	procDestroyWindow        = user32.NewProc("DestroyWindow")
	procDefWindowProc        = user32.NewProc("DefWindowProcW")
	procGetMessage           = user32.NewProc("GetMessageW")
	procTranslateMessage     = user32.NewProc("TranslateMessage")
	procDispatchMessage      = user32.NewProc("DispatchMessageW")
	procPostMessage          = user32.NewProc("PostMessageW")
	procSendMessage          = user32.NewProc("SendMessageW")
	procPostQuitMessage      = user32.NewProc("PostQuitMessage")
	procShowWindow           = user32.NewProc("ShowWindow")
	procGetForegroundWindow  = user32.NewProc("GetForegroundWindow")
	procSetForegroundWindow  = user32.NewProc("SetForegroundWindow")
	procSetCapture           = user32.NewProc("SetCapture")
	procReleaseCapture       = user32.NewProc("ReleaseCapture")
	procGetSystemMetrics     = user32.NewProc("GetSystemMetrics")
	procMouseEvent           = user32.NewProc("mouse_event")
	procSetClipboardViewer   = user32.NewProc("SetClipboardViewer")
	procChangeClipboardChain = user32.NewProc("ChangeClipboardChain")
	procGetClipboardOwner    = user32.NewProc("GetClipboardOwner")
	procOpenClipboard        = user32.NewProc("OpenClipboard")
	procEmptyClipboard       = user32.NewProc("EmptyClipboard")
	procCloseClipboard       = user32.NewProc("CloseClipboard")
	procSetWindowsHookEx     = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx  = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx       = user32.NewProc("CallNextHookEx")
	procGetModuleHandle      = kernel32.NewProc("GetModuleHandleW")
)

const (
	WH_KEYBOARD_LL = 13
	WH_MOUSE_LL    = 14

	WM_DESTROY       = 0x0002
	WM_DRAWCLIPBOARD = 0x0308
	WM_CHANGECBCHAIN = 0x030D
	WM_MOUSEMOVE     = 0x0200
	WM_APP           = 0x8000

	wmCall = WM_APP + 1

	WS_POPUP          = 0x80000000
	WS_EX_TOPMOST     = 0x00000008
	WS_EX_TRANSPARENT = 0x00000020
	WS_EX_TOOLWINDOW  = 0x00000080

	SW_HIDE = 0
	SW_SHOW = 5

	SM_CXSCREEN = 0
	SM_CYSCREEN = 1

	MOUSEEVENTF_MOVE     = 0x0001
	MOUSEEVENTF_ABSOLUTE = 0x8000

	LLKHF_EXTENDED = 0x01
	LLKHF_UP       = 0x80
	LLMHF_INJECTED = 0x01
)

type WNDCLASSEX struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     uintptr
	HIcon         uintptr
	HCursor       uintptr
	HbrBackground uintptr
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       uintptr
}

type MSG struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

type KBDLLHOOKSTRUCT struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type MSLLHOOKSTRUCT struct {
	Pt          struct{ X, Y int32 }
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

const relayClassName = "KVMHostRelay"

var (
	// Callbacks are created once; the runtime limits how many may exist.
	wndProcCallback   = windows.NewCallback(relayWndProc)
	keyboardCallback  = windows.NewCallback(keyboardHookProc)
	mouseCallback     = windows.NewCallback(mouseHookProc)
	registerClassOnce sync.Once
	registerClassErr  error

	activePlatform atomic.Pointer[winPlatform]
	activeHook     atomic.Pointer[winHook]
)

// winPlatform runs the relay window, its message loop and the low-level
// hooks on one locked OS thread. Calls that depend on thread affinity are
// marshalled onto it with call.
type winPlatform struct {
	log      *log.Logger
	keyboard *winKeyboard

	hwnd       uintptr
	nextViewer uintptr // only touched on the window thread
	post       PostFunc
	loopDone   chan struct{}

	mu      sync.Mutex
	pending []func()
}

// NewPlatform returns the Windows capture platform.
func NewPlatform(logger *log.Logger) (Platform, error) {
	if logger == nil {
		logger = log.Default()
	}
	p := &winPlatform{log: logger}
	p.keyboard = &winKeyboard{Mapper: input.NewMapper(input.NewWin32Layout()), p: p}
	return p, nil
}

func registerRelayClass() error {
	registerClassOnce.Do(func() {
		hInstance, _, _ := procGetModuleHandle.Call(0)
		wc := WNDCLASSEX{
			CbSize:        uint32(unsafe.Sizeof(WNDCLASSEX{})),
			LpfnWndProc:   wndProcCallback,
			HInstance:     hInstance,
			LpszClassName: windows.StringToUTF16Ptr(relayClassName),
		}
		if ret, _, err := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc))); ret == 0 {
			registerClassErr = fmt.Errorf("RegisterClassEx failed: %v", err)
		}
	})
	return registerClassErr
}

func (p *winPlatform) CreateSurface(post PostFunc) (Handle, error) {
	p.post = post
	p.loopDone = make(chan struct{})

	ready := make(chan error, 1)
	go p.windowThread(ready)
	if err := <-ready; err != nil {
		return 0, err
	}
	return Handle(p.hwnd), nil
}

func (p *winPlatform) windowThread(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.loopDone)

	if err := registerRelayClass(); err != nil {
		ready <- err
		return
	}

	hInstance, _, _ := procGetModuleHandle.Call(0)
	hwnd, _, err := procCreateWindowEx.Call(
		WS_EX_TOPMOST|WS_EX_TRANSPARENT|WS_EX_TOOLWINDOW,
		uintptr(unsafe.Pointer(windows.StringToUTF16Ptr(relayClassName))),
		uintptr(unsafe.Pointer(windows.StringToUTF16Ptr("kvmhost"))),
		WS_POPUP,
		0, 0, 1, 1,
		0, 0, hInstance, 0,
	)
	if hwnd == 0 {
		ready <- fmt.Errorf("CreateWindowEx failed: %v", err)
		return
	}
	p.hwnd = hwnd
	activePlatform.Store(p)
	ready <- nil

	var msg MSG
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
	}
	activePlatform.CompareAndSwap(p, nil)
}

// call runs fn on the window thread and waits for it.
func (p *winPlatform) call(fn func()) {
	done := make(chan struct{})
	p.mu.Lock()
	p.pending = append(p.pending, func() {
		fn()
		close(done)
	})
	p.mu.Unlock()

	procPostMessage.Call(p.hwnd, wmCall, 0, 0)
	<-done
}

func (p *winPlatform) runPending() {
	p.mu.Lock()
	fns := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func relayWndProc(hwnd, msg, wParam, lParam uintptr) uintptr {
	p := activePlatform.Load()
	if p == nil || p.hwnd != hwnd {
		ret, _, _ := procDefWindowProc.Call(hwnd, msg, wParam, lParam)
		return ret
	}

	switch msg {
	case wmCall:
		p.runPending()
		return 0

	case WM_DRAWCLIPBOARD:
		// pass it on before looking at the new owner
		if p.nextViewer != 0 {
			procSendMessage.Call(p.nextViewer, msg, wParam, lParam)
		}
		p.post(input.Event{Kind: input.EventClipboard})
		return 0

	case WM_CHANGECBCHAIN:
		if p.nextViewer == wParam {
			p.nextViewer = lParam
		} else if p.nextViewer != 0 {
			procSendMessage.Call(p.nextViewer, msg, wParam, lParam)
		}
		return 0

	case WM_DESTROY:
		procPostQuitMessage.Call(0)
		return 0
	}

	ret, _, _ := procDefWindowProc.Call(hwnd, msg, wParam, lParam)
	return ret
}

func (p *winPlatform) DestroySurface() {
	if p.hwnd == 0 {
		return
	}
	p.call(func() {
		procDestroyWindow.Call(p.hwnd)
	})
	<-p.loopDone
	p.hwnd = 0
}

func (p *winPlatform) JoinClipboardChain() error {
	p.call(func() {
		next, _, _ := procSetClipboardViewer.Call(p.hwnd)
		p.nextViewer = next
	})
	return nil
}

func (p *winPlatform) LeaveClipboardChain() {
	p.call(func() {
		procChangeClipboardChain.Call(p.hwnd, p.nextViewer)
		p.nextViewer = 0
	})
}

func (p *winPlatform) ClipboardOwner() Handle {
	owner, _, _ := procGetClipboardOwner.Call()
	return Handle(owner)
}

func (p *winPlatform) TakeClipboard(id keys.ClipboardID) error {
	// Windows has no selection clipboard
	if id != keys.Clipboard {
		return nil
	}
	if ret, _, err := procOpenClipboard.Call(p.hwnd); ret == 0 {
		return fmt.Errorf("OpenClipboard failed: %v", err)
	}
	defer procCloseClipboard.Call()

	if ret, _, err := procEmptyClipboard.Call(); ret == 0 {
		return fmt.Errorf("EmptyClipboard failed: %v", err)
	}
	return nil
}

func (p *winPlatform) ForegroundWindow() Handle {
	h, _, _ := procGetForegroundWindow.Call()
	return Handle(h)
}

func (p *winPlatform) SetForeground(h Handle) {
	procSetForegroundWindow.Call(uintptr(h))
}

func (p *winPlatform) ShowSurface() {
	p.call(func() { procShowWindow.Call(p.hwnd, SW_SHOW) })
}

func (p *winPlatform) HideSurface() {
	p.call(func() { procShowWindow.Call(p.hwnd, SW_HIDE) })
}

func (p *winPlatform) SetCapture() {
	p.call(func() { procSetCapture.Call(p.hwnd) })
}

func (p *winPlatform) ReleaseCapture() {
	p.call(func() { procReleaseCapture.Call() })
}

func (p *winPlatform) ScreenSize() (int32, int32) {
	w, _, _ := procGetSystemMetrics.Call(SM_CXSCREEN)
	h, _, _ := procGetSystemMetrics.Call(SM_CYSCREEN)
	return int32(w), int32(h)
}

// WarpCursor moves the cursor with an injected absolute motion so the hook
// sees it like any other motion.
func (p *winPlatform) WarpCursor(x, y int32) {
	w, h := p.ScreenSize()
	if w < 2 || h < 2 {
		return
	}
	dx := uint32(65535.99 * float64(x) / float64(w-1))
	dy := uint32(65535.99 * float64(y) / float64(h-1))
	procMouseEvent.Call(MOUSEEVENTF_MOVE|MOUSEEVENTF_ABSOLUTE, uintptr(dx), uintptr(dy), 0, 0)
}

func (p *winPlatform) LoadHook() (Hook, error) {
	for _, proc := range []*windows.LazyProc{procSetWindowsHookEx, procUnhookWindowsHookEx, procCallNextHookEx} {
		if err := proc.Find(); err != nil {
			return nil, err
		}
	}
	return &winHook{p: p}, nil
}

func (p *winPlatform) Keyboard() Keyboard {
	return p.keyboard
}

// winHook holds the low-level keyboard and mouse hooks. Its fields are only
// touched on the window thread.
type winHook struct {
	p         *winPlatform
	post      PostFunc
	keyHook   uintptr
	mouseHook uintptr
	relay     bool
	zone      Zone
	repeats   input.Repeats
}

func (h *winHook) Install(surface Handle, post PostFunc) error {
	var err error
	h.p.call(func() {
		h.post = post
		hMod, _, _ := procGetModuleHandle.Call(0)

		var callErr error
		h.keyHook, _, callErr = procSetWindowsHookEx.Call(WH_KEYBOARD_LL, keyboardCallback, hMod, 0)
		if h.keyHook == 0 {
			err = fmt.Errorf("failed to set keyboard hook: %v", callErr)
			return
		}
		h.mouseHook, _, callErr = procSetWindowsHookEx.Call(WH_MOUSE_LL, mouseCallback, hMod, 0)
		if h.mouseHook == 0 {
			procUnhookWindowsHookEx.Call(h.keyHook)
			h.keyHook = 0
			err = fmt.Errorf("failed to set mouse hook: %v", callErr)
			return
		}
		activeHook.Store(h)
	})
	if err == nil {
		h.p.log.Printf("Windows Platform: low-level hooks installed")
	}
	return err
}

func (h *winHook) Uninstall() {
	h.p.call(func() {
		activeHook.CompareAndSwap(h, nil)
		if h.mouseHook != 0 {
			procUnhookWindowsHookEx.Call(h.mouseHook)
			h.mouseHook = 0
		}
		if h.keyHook != 0 {
			procUnhookWindowsHookEx.Call(h.keyHook)
			h.keyHook = 0
		}
	})
}

func (h *winHook) SetZone(z Zone) {
	h.p.call(func() {
		h.relay = false
		h.zone = z
	})
}

func (h *winHook) SetRelay() {
	h.p.call(func() {
		h.relay = true
		h.repeats.Reset()
	})
}

func (h *winHook) Unload() {
	h.post = nil
}

func keyboardHookProc(nCode int32, wParam, lParam uintptr) uintptr {
	h := activeHook.Load()
	if nCode >= 0 && h != nil && h.relay {
		kb := (*KBDLLHOOKSTRUCT)(unsafe.Pointer(lParam))

		// low-level hooks see every auto-repeat as its own keystroke
		released := kb.Flags&LLKHF_UP != 0
		repeat := uint16(1)
		if released {
			h.repeats.Release(kb.VkCode)
		} else {
			repeat = h.repeats.Press(kb.VkCode)
		}
		info := input.KeyInfo(repeat, uint8(kb.ScanCode), kb.Flags&LLKHF_EXTENDED != 0, released)
		h.post(input.Event{Kind: input.EventKey, Code: kb.VkCode, Info: info})
		return 1
	}

	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func mouseHookProc(nCode int32, wParam, lParam uintptr) uintptr {
	h := activeHook.Load()
	if nCode >= 0 && h != nil {
		ms := (*MSLLHOOKSTRUCT)(unsafe.Pointer(lParam))
		msg := uint32(wParam)
		injected := ms.Flags&LLMHF_INJECTED != 0

		switch {
		case h.relay:
			switch msg {
			case WM_MOUSEMOVE:
				h.post(input.Event{Kind: input.EventMotion, X: ms.Pt.X, Y: ms.Pt.Y})
			case input.WMLButtonDown, input.WMLButtonUp,
				input.WMMButtonDown, input.WMMButtonUp,
				input.WMRButtonDown, input.WMRButtonUp:
				h.post(input.Event{Kind: input.EventButton, Code: msg})
			}
			// our own warps must still move the cursor
			if !injected {
				return 1
			}

		case msg == WM_MOUSEMOVE && h.zone.Hit(ms.Pt.X, ms.Pt.Y) != 0:
			h.post(input.Event{Kind: input.EventMotion, X: ms.Pt.X, Y: ms.Pt.Y})
		}
	}

	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

// winKeyboard resolves keys through the Windows layout. Key state is read
// on the window thread, which is the one receiving input.
type winKeyboard struct {
	*input.Mapper
	p *winPlatform
}

func (k *winKeyboard) Sync() {
	k.p.call(k.Mapper.Sync)
}

func (k *winKeyboard) MapButton(code uint32) keys.ButtonID {
	return input.MapButton(code)
}
