package engine_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/scheerer/nightwolf-rgb/internal/effects"
	"github.com/scheerer/nightwolf-rgb/internal/engine"
	"github.com/scheerer/nightwolf-rgb/lights"
	"github.com/scheerer/nightwolf-rgb/mocks"
)

type frame struct {
	deviceID int
	colors   []lights.Color
}

type frameLog struct {
	mu     sync.Mutex
	frames []frame
}

func (l *frameLog) record(args mock.Arguments) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, frame{deviceID: args.Int(1), colors: args.Get(2).([]lights.Color)})
}

func (l *frameLog) since(n int) []frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]frame(nil), l.frames[n:]...)
}

func (l *frameLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames)
}

func (l *frameLog) count(deviceID int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, f := range l.frames {
		if f.deviceID == deviceID {
			n++
		}
	}
	return n
}

type staticSampler struct {
	color lights.Color
	err   error
}

func (s staticSampler) Sample() (lights.Color, error) {
	return s.color, s.err
}

var (
	red   = lights.Color{Red: 255}
	green = lights.Color{Green: 255}
	blue  = lights.Color{Blue: 255}
)

var _ = Describe("Engine", func() {
	var (
		ctx     = context.Background()
		gateway *mocks.Gateway
		frames  *frameLog
		e       *engine.Engine
		config  engine.Config

		devices = []lights.Device{
			{ID: 1, Name: "keyboard", LEDCount: 3},
			{ID: 2, Name: "fans", LEDCount: 5},
		}
	)

	BeforeEach(func() {
		gateway = new(mocks.Gateway)
		frames = &frameLog{}
		config = engine.Config{FrameRate: engine.DefaultFrameRate}
	})

	JustBeforeEach(func() {
		e = engine.New(gateway, config)
	})

	AfterEach(func() {
		e.Close()
	})

	Context("with reachable devices", func() {
		BeforeEach(func() {
			gateway.On(`ListDevices`, mock.Anything).Return(devices, nil)
			gateway.On(`SetDeviceMode`, mock.Anything, mock.Anything, lights.DirectMode).Return(nil)
			gateway.On(`PushFrame`, mock.Anything, mock.Anything, mock.Anything).Run(frames.record).Return(nil)
		})

		It("should report idle before any effect starts", func() {
			status := e.Status()
			Expect(status.Active).To(BeFalse())
			Expect(status.Effect).To(Equal("none"))
			Expect(status.Options).To(BeNil())
		})

		It("should switch every device into direct mode on start", func() {
			Expect(e.Start(ctx, effects.Rainbow, effects.Options{})).To(Succeed())
			gateway.AssertCalled(GinkgoT(), `SetDeviceMode`, mock.Anything, 1, lights.DirectMode)
			gateway.AssertCalled(GinkgoT(), `SetDeviceMode`, mock.Anything, 2, lights.DirectMode)
		})

		It("should report the running effect and its options", func() {
			opts := effects.Options{Speed: 80, Color: "#00FF00"}
			Expect(e.Start(ctx, effects.Breathing, opts)).To(Succeed())

			status := e.Status()
			Expect(status.Active).To(BeTrue())
			Expect(status.Effect).To(Equal("breathing"))
			Expect(*status.Options).To(Equal(opts))
		})

		It("should push a full LED buffer to every device each tick", func() {
			Expect(e.Start(ctx, effects.Custom, effects.Options{Colors: []string{"#00FF00"}})).To(Succeed())

			Eventually(func() int { return frames.count(1) }).Should(BeNumerically(">=", 3))
			Eventually(func() int { return frames.count(2) }).Should(BeNumerically(">=", 3))
			for _, f := range frames.since(0) {
				expected := 3
				if f.deviceID == 2 {
					expected = 5
				}
				Expect(f.colors).To(HaveLen(expected))
				Expect(f.colors).To(HaveEach(green))
			}
		})

		It("should stop a static effect after exactly one frame", func() {
			Expect(e.Start(ctx, effects.Static, effects.Options{Color: "#FF0000"})).To(Succeed())

			Eventually(func() bool { return e.Status().Active }).Should(BeFalse())
			Consistently(func() int { return frames.len() }, 200*time.Millisecond).Should(Equal(2))
			Expect(frames.count(1)).To(Equal(1))
			Expect(frames.count(2)).To(Equal(1))
			Expect(frames.since(0)[0].colors).To(HaveEach(red))
		})

		It("should keep exactly one effect when started twice", func() {
			Expect(e.Start(ctx, effects.Custom, effects.Options{Colors: []string{"#FF0000"}})).To(Succeed())
			Eventually(func() int { return frames.len() }).Should(BeNumerically(">", 0))

			Expect(e.Start(ctx, effects.Custom, effects.Options{Colors: []string{"#0000FF"}})).To(Succeed())
			mark := frames.len()

			time.Sleep(330 * time.Millisecond)
			after := frames.since(mark)
			Expect(after).NotTo(BeEmpty())
			for _, f := range after {
				Expect(f.colors).To(HaveEach(blue))
			}
			// one timer at 30Hz gives ~10 ticks, a stale second timer would double it
			Expect(len(after) / len(devices)).To(BeNumerically("<=", 13))

			status := e.Status()
			Expect(status.Effect).To(Equal("custom"))
			Expect(status.Options.Colors).To(Equal([]string{"#0000FF"}))
		})

		It("should stop pushing after stop", func() {
			Expect(e.Start(ctx, effects.Strobing, effects.Options{})).To(Succeed())
			Eventually(func() int { return frames.len() }).Should(BeNumerically(">", 0))

			e.Stop()
			Expect(e.Status().Active).To(BeFalse())
			mark := frames.len()
			Consistently(func() int { return frames.len() }, 150*time.Millisecond).Should(Equal(mark))
		})

		It("should treat stop while idle as a no-op", func() {
			Expect(func() { e.Stop() }).NotTo(Panic())
			Expect(func() { e.Stop() }).NotTo(Panic())
			Expect(e.Status().Active).To(BeFalse())
		})

		It("should reject invalid options and leave the running effect alone", func() {
			Expect(e.Start(ctx, effects.Rainbow, effects.Options{})).To(Succeed())

			err := e.Start(ctx, effects.Custom, effects.Options{Colors: []string{"#nothex"}})
			Expect(errors.Is(err, effects.ErrInvalidOptions)).To(BeTrue())
			Expect(e.Status().Effect).To(Equal("rainbow"))
		})

		It("should notify listeners on transitions", func() {
			var mu sync.Mutex
			var seen []string
			e.OnChange(func(s engine.Status) {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, s.Effect)
			})

			Expect(e.Start(ctx, effects.Spectrum, effects.Options{})).To(Succeed())
			e.Stop()

			mu.Lock()
			defer mu.Unlock()
			Expect(seen).To(Equal([]string{"spectrum", "none"}))
		})

		It("should count ticks and starts", func() {
			Expect(e.Start(ctx, effects.Rainbow, effects.Options{})).To(Succeed())
			Eventually(func() int64 { return e.Metrics().Ticks }).Should(BeNumerically(">=", 2))
			Expect(e.Metrics().Starts).To(Equal(int64(1)))
			Expect(e.Metrics().PushFailures).To(Equal(int64(0)))
		})

		Context("with a screen sampler", func() {
			BeforeEach(func() {
				config.Sampler = staticSampler{color: green}
			})

			It("should push the sampled color", func() {
				Expect(e.Start(ctx, effects.Ambient, effects.Options{})).To(Succeed())
				Eventually(func() int { return frames.count(2) }).Should(BeNumerically(">=", 1))
				Expect(frames.since(0)[0].colors).To(HaveEach(green))
			})
		})

		It("should refuse the ambient effect without a sampler", func() {
			err := e.Start(ctx, effects.Ambient, effects.Options{})
			Expect(errors.Is(err, effects.ErrInvalidOptions)).To(BeTrue())
			Expect(e.Status().Active).To(BeFalse())
		})
	})

	Context("with a failing device", func() {
		BeforeEach(func() {
			config.PushTimeout = 20 * time.Millisecond
			gateway.On(`ListDevices`, mock.Anything).Return(devices, nil)
			gateway.On(`SetDeviceMode`, mock.Anything, 1, lights.DirectMode).Return(errors.New("unknown device"))
			gateway.On(`SetDeviceMode`, mock.Anything, 2, lights.DirectMode).Return(nil)
		})

		It("should keep animating the other devices when one push fails", func() {
			gateway.On(`PushFrame`, mock.Anything, 1, mock.Anything).Return(errors.New("unreachable"))
			gateway.On(`PushFrame`, mock.Anything, 2, mock.Anything).Run(frames.record).Return(nil)

			Expect(e.Start(ctx, effects.Rainbow, effects.Options{})).To(Succeed())
			Expect(e.Status().Active).To(BeTrue())
			Eventually(func() int { return frames.count(2) }).Should(BeNumerically(">=", 5))
			Expect(e.Status().Active).To(BeTrue())
			Eventually(func() int64 { return e.Metrics().PushFailures }).Should(BeNumerically(">=", 5))
		})

		It("should bound a hung push with the push timeout", func() {
			hang := func(ctx context.Context, _ int, _ []lights.Color) error {
				<-ctx.Done()
				return ctx.Err()
			}
			gateway.On(`PushFrame`, mock.Anything, 1, mock.Anything).Return(hang)
			gateway.On(`PushFrame`, mock.Anything, 2, mock.Anything).Run(frames.record).Return(nil)

			Expect(e.Start(ctx, effects.Breathing, effects.Options{})).To(Succeed())
			Eventually(func() int { return frames.count(2) }, time.Second).Should(BeNumerically(">=", 5))
		})
	})

	Context("without a gateway link", func() {
		BeforeEach(func() {
			gateway.On(`ListDevices`, mock.Anything).Return(nil, lights.ErrNotConnected)
		})

		It("should still start and tick with no devices", func() {
			Expect(e.Start(ctx, effects.Rainbow, effects.Options{})).To(Succeed())
			Expect(e.Status().Active).To(BeTrue())
			Eventually(func() int64 { return e.Metrics().Ticks }).Should(BeNumerically(">=", 2))
			gateway.AssertNotCalled(GinkgoT(), `PushFrame`, mock.Anything, mock.Anything, mock.Anything)
		})

		It("should still stop a static effect after one tick", func() {
			Expect(e.Start(ctx, effects.Static, effects.Options{})).To(Succeed())
			Eventually(func() bool { return e.Status().Active }).Should(BeFalse())
			Expect(e.Metrics().Ticks).To(Equal(int64(1)))
		})
	})
})

var _ = Describe("Control", func() {
	var (
		gateway *mocks.Gateway
		e       *engine.Engine
		control *engine.Control
	)

	BeforeEach(func() {
		gateway = new(mocks.Gateway)
		gateway.On(`ListDevices`, mock.Anything).Return([]lights.Device{}, nil)
		e = engine.New(gateway, engine.Config{})
		control = engine.NewControl(e)
	})

	AfterEach(func() {
		e.Close()
	})

	It("should start a known effect by name", func() {
		resp, err := control.Start(context.Background(), "breathing", &effects.Options{Color: "#FF00FF"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Success).To(BeTrue())
		Expect(resp.Message).To(Equal("Effect breathing started"))
		Expect(control.Status().Effect).To(Equal("breathing"))
	})

	It("should start with default options when none are given", func() {
		_, err := control.Start(context.Background(), "rainbow", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(*control.Status().Options).To(Equal(effects.Options{}))
	})

	It("should reject missing and unknown kinds", func() {
		_, err := control.Start(context.Background(), "", nil)
		Expect(errors.Is(err, effects.ErrUnknownKind)).To(BeTrue())
		_, err = control.Start(context.Background(), "disco", nil)
		Expect(errors.Is(err, effects.ErrUnknownKind)).To(BeTrue())
		Expect(control.Status().Active).To(BeFalse())
	})

	It("should always succeed on stop", func() {
		Expect(control.Stop()).To(Equal(engine.Response{Success: true, Message: "Effect stopped"}))
		_, err := control.Start(context.Background(), "strobing", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(control.Stop().Success).To(BeTrue())
		Expect(control.Status().Active).To(BeFalse())
	})
})
