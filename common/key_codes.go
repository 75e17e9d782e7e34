package common

import "fmt"

// Key codes bound by the viewer. Printable keys carry their ASCII value, matching GLFW.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	Key0 = 48
	Key1 = 49
	Key2 = 50
	Key3 = 51
	Key4 = 52
	Key5 = 53
	Key6 = 54
	Key7 = 55
	Key8 = 56

	KeyF = 70
	KeyG = 71
	KeyW = 87

	KeyEsc = 256
)

// KeyName returns a short printable name for a key code, for log lines.
//
// Parameters:
//   - keyCode: the GLFW key code
//
// Returns:
//   - string: the character for printable keys, "esc", or the numeric code
func KeyName(keyCode uint32) string {
	switch {
	case keyCode == KeyEsc:
		return "esc"
	case keyCode == ' ':
		return "space"
	case keyCode > ' ' && keyCode < 127:
		return string(rune(keyCode))
	}
	return fmt.Sprintf("key(%d)", keyCode)
}
