package monitor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/ibanks42/resswitch/internal/config"
	"github.com/ibanks42/resswitch/internal/display"
	"github.com/ibanks42/resswitch/internal/monitor"
	"github.com/ibanks42/resswitch/internal/process"
	"github.com/ibanks42/resswitch/internal/watchlist"
)

// screen is an in-memory display backend
type screen struct {
	mu      sync.Mutex
	mode    display.Mode
	applied []display.Mode
	failing bool
}

func (s *screen) Current() (display.Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, nil
}

func (s *screen) Apply(mode display.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("mode rejected")
	}
	s.mode = mode
	s.applied = append(s.applied, mode)
	return nil
}

func (s *screen) current() display.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *screen) applyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.applied)
}

// processTable is a process querier backed by a name set
type processTable struct {
	mu      sync.Mutex
	running map[string]int
}

func (p *processTable) Running(name string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running[name], nil
}

func (p *processTable) start(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running[name]++
}

func (p *processTable) stop(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.running, name)
}

var _ = Describe("Monitor Service", func() {
	var (
		tmpDir     string
		configPath string
		scr        *screen
		original   display.Mode
		procs      *processTable
		store      *config.Store
		svc        *monitor.Service
		cancel     context.CancelFunc
	)

	startWith := func(entries ...watchlist.Entry) {
		list, err := watchlist.New(entries...)
		Expect(err).NotTo(HaveOccurred())

		controller := display.NewController(scr, 0, zap.NewNop())
		_, err = controller.CaptureCurrent()
		Expect(err).NotTo(HaveOccurred())

		svc = monitor.New(list, monitor.Options{
			Interval: 10 * time.Millisecond,
			Display:  controller,
			Matcher:  process.NewWatcher(procs, zap.NewNop()),
			Store:    store,
			Logger:   zap.NewNop(),
		})

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		running := svc
		go func() {
			defer GinkgoRecover()
			Expect(running.Run(ctx)).To(Succeed())
		}()
	}

	state := func() monitor.State {
		st, err := svc.Status()
		if err != nil {
			return -1
		}
		return st.State
	}

	ticking := func() bool {
		st, err := svc.Status()
		return err == nil && st.Ticking
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "resswitch-scenarios-*")
		Expect(err).NotTo(HaveOccurred())

		configPath = filepath.Join(tmpDir, config.DefaultFileName)
		store = config.NewStore(configPath, zap.NewNop())

		original = display.NewMode(2560, 1440, []byte("native-2560x1440@144"))
		scr = &screen{mode: original}
		procs = &processTable{running: map[string]int{}}
	})

	AfterEach(func() {
		if svc != nil {
			cancel()
			Eventually(svc.Done()).Should(BeClosed())
			svc = nil
		}
		os.RemoveAll(tmpDir)
	})

	Describe("Overriding while a watched process runs", func() {
		Context("when the process starts and later exits", func() {
			It("should switch to the target resolution and back", func() {
				startWith(watchlist.Entry{ProcessName: "game.exe", Width: 1920, Height: 1080})

				Consistently(state, 50*time.Millisecond).Should(Equal(monitor.Idle))
				Expect(scr.applyCount()).To(BeZero())

				procs.start("game.exe")
				Eventually(state).Should(Equal(monitor.Overridden))
				Expect(scr.current().Width).To(Equal(1920))
				Expect(scr.current().Height).To(Equal(1080))

				procs.stop("game.exe")
				Eventually(state).Should(Equal(monitor.Idle))
				Expect(scr.current().Equal(original)).To(BeTrue())
			})
		})
	})

	Describe("Editing the watch list", func() {
		Context("when the only entry is removed while overridden", func() {
			It("should restore the original mode and stop ticking", func() {
				startWith(watchlist.Entry{ProcessName: "game.exe", Width: 1920, Height: 1080})
				procs.start("game.exe")
				Eventually(state).Should(Equal(monitor.Overridden))

				Expect(svc.RemoveWatch("game.exe")).To(Succeed())

				Expect(state()).To(Equal(monitor.Idle))
				Expect(ticking()).To(BeFalse())
				Expect(scr.current().Equal(original)).To(BeTrue())
			})
		})

		Context("when entries are added and removed", func() {
			It("should persist every change", func() {
				startWith()
				Expect(ticking()).To(BeFalse())

				Expect(svc.AddWatch("game.exe", 1920, 1080)).To(Succeed())
				Expect(svc.AddWatch("editor.exe", 1280, 720)).To(Succeed())
				Expect(ticking()).To(BeTrue())

				cfg, err := config.Read(configPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Watches).To(HaveLen(2))
				Expect(cfg.Watches[0].ProcessName).To(Equal("game.exe"))

				Expect(svc.RemoveWatch("game.exe")).To(Succeed())
				cfg, err = config.Read(configPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Watches).To(ConsistOf(watchlist.Entry{ProcessName: "editor.exe", Width: 1280, Height: 720}))
			})
		})
	})

	Describe("Shutting down", func() {
		Context("when the display is overridden", func() {
			It("should restore the original mode and save the list", func() {
				startWith(watchlist.Entry{ProcessName: "game.exe", Width: 1920, Height: 1080})
				procs.start("game.exe")
				Eventually(state).Should(Equal(monitor.Overridden))

				svc.RequestShutdown()
				Eventually(svc.Done()).Should(BeClosed())

				Expect(scr.current().Equal(original)).To(BeTrue())

				cfg, err := config.Read(configPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Watches).To(HaveLen(1))

				Expect(svc.AddWatch("late.exe", 800, 600)).To(MatchError(monitor.ErrStopped))
			})
		})

		Context("when the restore keeps failing", func() {
			It("should still return", func() {
				startWith(watchlist.Entry{ProcessName: "game.exe", Width: 1920, Height: 1080})
				procs.start("game.exe")
				Eventually(state).Should(Equal(monitor.Overridden))

				scr.mu.Lock()
				scr.failing = true
				scr.mu.Unlock()

				cancel()
				Eventually(svc.Done()).Should(BeClosed())
				Expect(scr.current().Width).To(Equal(1920))
			})
		})
	})

	Describe("Starting from a corrupt config file", func() {
		It("should fall back to an empty list and stay idle", func() {
			Expect(os.WriteFile(configPath, []byte("{not json"), 0644)).To(Succeed())

			_, err := store.Load()
			var loadErr *config.LoadError
			Expect(errors.As(err, &loadErr)).To(BeTrue())
			Expect(err).To(MatchError(config.ErrCorrupt))

			startWith()
			Expect(ticking()).To(BeFalse())
			Consistently(state, 50*time.Millisecond).Should(Equal(monitor.Idle))
			Expect(scr.applyCount()).To(BeZero())
		})
	})
})
