package display

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// xrandrTimeout bounds a single xrandr invocation.
const xrandrTimeout = 10 * time.Second

// runFunc runs xrandr with args and returns its combined output.
type runFunc func(ctx context.Context, args ...string) ([]byte, error)

// XrandrBackend drives the primary X11 output through the xrandr command.
// Its native record holds the output name, the refresh rate and the size the
// rate belongs to.
type XrandrBackend struct {
	run    runFunc
	output string
}

// NewXrandrBackend returns a backend using the xrandr binary on PATH.
func NewXrandrBackend() (*XrandrBackend, error) {
	if _, err := exec.LookPath("xrandr"); err != nil {
		return nil, fmt.Errorf("%w: xrandr not found: %v", ErrUnsupported, err)
	}
	return &XrandrBackend{run: runXrandr}, nil
}

func runXrandr(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "xrandr", args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("xrandr %s: %w: %s", strings.Join(args, " "), err, bytes.TrimSpace(out))
	}
	return out, nil
}

// Current returns the active mode of the primary output.
func (b *XrandrBackend) Current() (Mode, error) {
	ctx, cancel := context.WithTimeout(context.Background(), xrandrTimeout)
	defer cancel()

	out, err := b.run(ctx, "--current")
	if err != nil {
		return Mode{}, err
	}

	state, err := parseXrandr(out)
	if err != nil {
		return Mode{}, err
	}
	b.output = state.output
	return NewMode(state.width, state.height, state.encode()), nil
}

// Apply switches the output named in the mode's native record.
func (b *XrandrBackend) Apply(mode Mode) error {
	state, err := decodeXrandrState(mode.native)
	if err != nil {
		return err
	}

	args := []string{"--output", state.output, "--mode", fmt.Sprintf("%dx%d", mode.Width, mode.Height)}
	// The captured rate is only known to exist for the captured size.
	if state.rate != "" && mode.Width == state.width && mode.Height == state.height {
		args = append(args, "--rate", state.rate)
	}

	ctx, cancel := context.WithTimeout(context.Background(), xrandrTimeout)
	defer cancel()

	_, err = b.run(ctx, args...)
	return err
}

// Describe names the output captured by Current.
func (b *XrandrBackend) Describe() string {
	return b.output
}

type xrandrState struct {
	output string
	width  int
	height int
	rate   string
}

func (s xrandrState) encode() []byte {
	return []byte(fmt.Sprintf("%s\x00%dx%d\x00%s", s.output, s.width, s.height, s.rate))
}

func decodeXrandrState(native []byte) (xrandrState, error) {
	parts := strings.Split(string(native), "\x00")
	if len(parts) != 3 || parts[0] == "" {
		return xrandrState{}, errors.New("invalid xrandr mode record")
	}
	w, h, err := parseSize(parts[1])
	if err != nil {
		return xrandrState{}, fmt.Errorf("invalid xrandr mode record: %w", err)
	}
	return xrandrState{output: parts[0], width: w, height: h, rate: parts[2]}, nil
}

// parseXrandr finds the primary connected output (or the first connected one)
// and its current mode in `xrandr --current` output.
func parseXrandr(out []byte) (xrandrState, error) {
	var (
		candidates []xrandrState
		current    *xrandrState
		primary    = -1
	)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if line[0] != ' ' && line[0] != '\t' {
			current = nil
			fields := strings.Fields(line)
			if len(fields) < 2 || fields[1] != "connected" {
				continue
			}
			candidates = append(candidates, xrandrState{output: fields[0]})
			current = &candidates[len(candidates)-1]
			if len(fields) > 2 && fields[2] == "primary" {
				primary = len(candidates) - 1
			}
			continue
		}

		if current == nil || current.rate != "" {
			continue
		}

		// Mode line: "   1920x1080     60.00*+  59.94    50.00"
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, f := range fields[1:] {
			if !strings.Contains(f, "*") {
				continue
			}
			w, h, err := parseSize(fields[0])
			if err != nil {
				break
			}
			current.width, current.height = w, h
			current.rate = strings.TrimRight(f, "*+")
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return xrandrState{}, fmt.Errorf("failed to read xrandr output: %w", err)
	}

	pick := func(s xrandrState) bool { return s.rate != "" }
	if primary >= 0 && pick(candidates[primary]) {
		return candidates[primary], nil
	}
	for _, c := range candidates {
		if pick(c) {
			return c, nil
		}
	}
	return xrandrState{}, errors.New("no active xrandr output found")
}

func parseSize(s string) (int, int, error) {
	// Interlaced modes are listed as 1920x1080i.
	s = strings.TrimRight(s, "i")
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid mode size %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width: %w", err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height: %w", err)
	}
	return width, height, nil
}
