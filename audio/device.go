package audio

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// SelectDevice runs an interactive capture device picker on the
// terminal. A single device is returned without prompting; with more
// than one the arrow keys (or j/k, or a digit) pick the entry.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("no capture devices found")
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	render := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Pick a capture device (↑/↓ or j/k, Enter confirms, q aborts):\r\n\r\n")
		for i, d := range devices {
			note := ""
			if IsBluetooth(d.Name) {
				note = " \x1b[33m(bluetooth, lower quality)\x1b[0m"
			}
			marker := " "
			if i == cursor {
				marker = "\x1b[1;36m▶\x1b[0m"
			}
			fmt.Printf(" %s %d. %s%s\r\n", marker, i+1, d.Name, note)
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		switch {
		case n == 1 && buf[0] == '\r':
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case n == 1 && (buf[0] == 'q' || buf[0] == 3):
			fmt.Print("\r\n")
			return nil, fmt.Errorf("device selection aborted")
		case n == 1 && buf[0] == 'j':
			cursor = clampCursor(cursor+1, len(devices))
		case n == 1 && buf[0] == 'k':
			cursor = clampCursor(cursor-1, len(devices))
		case n == 1 && buf[0] >= '1' && buf[0] <= '9':
			if pick := int(buf[0] - '1'); pick < len(devices) {
				cursor = pick
				fmt.Print("\r\n")
				return &devices[cursor], nil
			}
		case n == 3 && buf[0] == 0x1b && buf[1] == '[':
			switch buf[2] {
			case 'A':
				cursor = clampCursor(cursor-1, len(devices))
			case 'B':
				cursor = clampCursor(cursor+1, len(devices))
			}
		}

		fmt.Printf("\x1b[%dA", len(devices)+2)
		render()
	}
}

func clampCursor(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
