//go:build windows

package autostart

import (
	"fmt"
	"syscall"
	"unsafe"
)

const (
	hkeyCurrentUser   = 0x80000001
	keySetValue       = 0x0002
	keyQueryValue     = 0x0001
	regSZ             = 1
	errorFileNotFound = 2

	runKeyPath = `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`
)

var (
	advapi32         = syscall.NewLazyDLL("advapi32.dll")
	procRegOpenKeyEx = advapi32.NewProc("RegOpenKeyExW")
	procRegSetValue  = advapi32.NewProc("RegSetValueExW")
	procRegQuery     = advapi32.NewProc("RegQueryValueExW")
	procRegDelete    = advapi32.NewProc("RegDeleteValueW")
	procRegCloseKey  = advapi32.NewProc("RegCloseKey")
)

// RegistryManager manages a value under the current user's Run key.
type RegistryManager struct {
	valueName string
}

// New returns the manager for HKCU\...\Run.
func New() (Manager, error) {
	return &RegistryManager{valueName: AppName}, nil
}

// Location returns the registry value path.
func (m *RegistryManager) Location() string {
	return `HKCU\` + runKeyPath + `\` + m.valueName
}

func openRunKey(access uint32) (syscall.Handle, error) {
	keyPathPtr, err := syscall.UTF16PtrFromString(runKeyPath)
	if err != nil {
		return 0, err
	}

	var hKey syscall.Handle
	ret, _, _ := procRegOpenKeyEx.Call(
		uintptr(hkeyCurrentUser),
		uintptr(unsafe.Pointer(keyPathPtr)),
		0,
		uintptr(access),
		uintptr(unsafe.Pointer(&hKey)),
	)
	if ret != 0 {
		return 0, fmt.Errorf("failed to open registry key (error code: %d)", ret)
	}
	return hKey, nil
}

// IsEnabled reports whether the Run value exists.
func (m *RegistryManager) IsEnabled() (bool, error) {
	hKey, err := openRunKey(keyQueryValue)
	if err != nil {
		return false, err
	}
	defer procRegCloseKey.Call(uintptr(hKey))

	valueNamePtr, err := syscall.UTF16PtrFromString(m.valueName)
	if err != nil {
		return false, err
	}

	var valueType, dataSize uint32
	ret, _, _ := procRegQuery.Call(
		uintptr(hKey),
		uintptr(unsafe.Pointer(valueNamePtr)),
		0,
		uintptr(unsafe.Pointer(&valueType)),
		0,
		uintptr(unsafe.Pointer(&dataSize)),
	)
	switch ret {
	case 0:
		return true, nil
	case errorFileNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("failed to query registry value (error code: %d)", ret)
	}
}

// Enable sets the Run value to launch execPath.
func (m *RegistryManager) Enable(execPath string) error {
	hKey, err := openRunKey(keySetValue)
	if err != nil {
		return err
	}
	defer procRegCloseKey.Call(uintptr(hKey))

	valueNamePtr, err := syscall.UTF16PtrFromString(m.valueName)
	if err != nil {
		return err
	}

	// REG_SZ data is the UTF-16 string including its terminator.
	data, err := syscall.UTF16FromString(`"` + execPath + `" run`)
	if err != nil {
		return err
	}

	ret, _, _ := procRegSetValue.Call(
		uintptr(hKey),
		uintptr(unsafe.Pointer(valueNamePtr)),
		0,
		uintptr(regSZ),
		uintptr(unsafe.Pointer(&data[0])),
		uintptr(len(data)*2),
	)
	if ret != 0 {
		return fmt.Errorf("failed to set registry value (error code: %d)", ret)
	}
	return nil
}

// Disable deletes the Run value. A missing value is not an error.
func (m *RegistryManager) Disable() error {
	hKey, err := openRunKey(keySetValue)
	if err != nil {
		return err
	}
	defer procRegCloseKey.Call(uintptr(hKey))

	valueNamePtr, err := syscall.UTF16PtrFromString(m.valueName)
	if err != nil {
		return err
	}

	ret, _, _ := procRegDelete.Call(uintptr(hKey), uintptr(unsafe.Pointer(valueNamePtr)))
	if ret != 0 && ret != errorFileNotFound {
		return fmt.Errorf("failed to delete registry value (error code: %d)", ret)
	}
	return nil
}

var _ Manager = (*RegistryManager)(nil)
