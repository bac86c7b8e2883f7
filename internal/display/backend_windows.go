//go:build windows

package display

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"syscall"
	"unsafe"

	"github.com/StackExchange/wmi"
)

// devMode mirrors the Win32 DEVMODEW structure.
type devMode struct {
	DeviceName       [32]uint16
	SpecVersion      uint16
	DriverVersion    uint16
	Size             uint16
	DriverExtra      uint16
	Fields           uint32
	X                int32
	Y                int32
	Orientation      uint32
	FixedOutput      uint32
	Color            int16
	Duplex           int16
	YResolution      int16
	TTOption         int16
	Collate          int16
	FormName         [32]uint16
	LogPixels        uint16
	BitsPerPel       uint32
	PelsWidth        uint32
	PelsHeight       uint32
	DisplayFlags     uint32
	DisplayFrequency uint32
	ICMMethod        uint32
	ICMIntent        uint32
	MediaType        uint32
	DitherType       uint32
	Reserved1        uint32
	Reserved2        uint32
	PanningWidth     uint32
	PanningHeight    uint32
}

const (
	enumCurrentSettings = 0xFFFFFFFF

	dmPelsWidth  = 0x00080000
	dmPelsHeight = 0x00100000

	cdsUpdateRegistry = 0x00000001

	dispChangeSuccessful  = 0
	dispChangeRestart     = 1
	dispChangeFailed      = -1
	dispChangeBadMode     = -2
	dispChangeNotUpdated  = -3
	dispChangeBadFlags    = -4
	dispChangeBadParam    = -5
	dispChangeBadDualView = -6
)

var (
	user32                       = syscall.NewLazyDLL("user32.dll")
	procEnumDisplaySettingsW     = user32.NewProc("EnumDisplaySettingsW")
	procChangeDisplaySettingsExW = user32.NewProc("ChangeDisplaySettingsExW")

	monitorModelRe = regexp.MustCompile(`\(([^)]+)\)`)
)

// Win32Backend changes the primary display through user32. Its native record
// is the raw DEVMODEW returned by EnumDisplaySettingsW.
type Win32Backend struct{}

// NewBackend returns the Win32 backend.
func NewBackend() (Backend, error) {
	if err := user32.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return &Win32Backend{}, nil
}

// Current retrieves the current settings of the primary display.
func (b *Win32Backend) Current() (Mode, error) {
	var dm devMode
	dm.Size = uint16(unsafe.Sizeof(dm))

	ret, _, err := procEnumDisplaySettingsW.Call(
		0, // primary display
		uintptr(enumCurrentSettings),
		uintptr(unsafe.Pointer(&dm)),
	)
	if ret == 0 {
		return Mode{}, fmt.Errorf("failed to get display settings: %w", err)
	}

	return NewMode(int(dm.PelsWidth), int(dm.PelsHeight), devModeBytes(&dm)), nil
}

// Apply writes the size into the native DEVMODEW and applies it.
func (b *Win32Backend) Apply(mode Mode) error {
	var dm devMode
	if len(mode.native) != int(unsafe.Sizeof(dm)) {
		return errors.New("invalid DEVMODE record")
	}
	copy(devModeBytesView(&dm), mode.native)

	dm.PelsWidth = uint32(mode.Width)
	dm.PelsHeight = uint32(mode.Height)
	dm.Fields |= dmPelsWidth | dmPelsHeight

	ret, _, _ := procChangeDisplaySettingsExW.Call(
		0, // primary display
		uintptr(unsafe.Pointer(&dm)),
		0,
		uintptr(cdsUpdateRegistry),
		0,
	)
	if code := int32(ret); code != dispChangeSuccessful {
		return fmt.Errorf("ChangeDisplaySettingsEx returned %d: %s", code, dispChangeMessage(code))
	}
	return nil
}

// Describe returns the model name of the first monitor reported by WMI.
func (b *Win32Backend) Describe() string {
	names := monitorNamesFromWMI()
	if len(names) == 0 {
		return "primary display"
	}
	return names[0]
}

// win32PnPEntity represents a WMI PnP entity
type win32PnPEntity struct {
	Name        string
	Description string
	PNPDeviceID string
}

// monitorNamesFromWMI gets all monitor names using WMI
func monitorNamesFromWMI() []string {
	var devices []win32PnPEntity
	query := `SELECT Name, Description, PNPDeviceID FROM Win32_PnPEntity WHERE PNPDeviceID LIKE "%DISPLAY%"`
	if err := wmi.Query(query, &devices); err != nil {
		return nil
	}

	var names []string
	for _, device := range devices {
		if !strings.Contains(device.Name, "Monitor") &&
			!strings.Contains(device.Description, "Monitor") &&
			!strings.Contains(device.PNPDeviceID, "MONITOR") {
			continue
		}
		// Format is typically: "Generic Monitor (MODEL_NAME)"
		if matches := monitorModelRe.FindStringSubmatch(device.Name); len(matches) >= 2 {
			names = append(names, matches[1])
		}
	}
	return names
}

func devModeBytesView(dm *devMode) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(dm)), unsafe.Sizeof(*dm))
}

func devModeBytes(dm *devMode) []byte {
	out := make([]byte, unsafe.Sizeof(*dm))
	copy(out, devModeBytesView(dm))
	return out
}

func dispChangeMessage(code int32) string {
	switch code {
	case dispChangeRestart:
		return "the computer must be restarted for the mode to take effect"
	case dispChangeFailed:
		return "the display driver failed the mode"
	case dispChangeBadMode:
		return "the mode is not supported"
	case dispChangeNotUpdated:
		return "unable to write settings to the registry"
	case dispChangeBadFlags:
		return "invalid flags"
	case dispChangeBadParam:
		return "invalid parameter"
	case dispChangeBadDualView:
		return "the system is DualView capable"
	default:
		return "unknown error"
	}
}
