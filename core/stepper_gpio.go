package core

// GPIOStepperBackend bit-bangs step and direction through the registered
// GPIODriver. It is the portable fallback when no PIO is available.
type GPIOStepperBackend struct {
	gpio       GPIODriver
	stepPin    GPIOPin
	dirPin     GPIOPin
	invertStep bool
	invertDir  bool
}

// NewGPIOStepperBackend creates a backend on d, or on the registered
// driver when d is nil.
func NewGPIOStepperBackend(d GPIODriver) *GPIOStepperBackend {
	if d == nil {
		d = MustGPIO()
	}
	return &GPIOStepperBackend{gpio: d}
}

func (b *GPIOStepperBackend) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	b.stepPin, b.dirPin = GPIOPin(stepPin), GPIOPin(dirPin)
	b.invertStep, b.invertDir = invertStep, invertDir

	for _, pin := range [...]GPIOPin{b.stepPin, b.dirPin} {
		if err := b.gpio.ConfigureOutput(pin); err != nil {
			return err
		}
	}
	if err := b.gpio.SetPin(b.stepPin, invertStep); err != nil {
		return err
	}
	return b.gpio.SetPin(b.dirPin, invertDir)
}

// Step drives a full pulse. The driver call overhead gives the pulse width.
func (b *GPIOStepperBackend) Step() {
	_ = b.gpio.SetPin(b.stepPin, !b.invertStep)
	_ = b.gpio.SetPin(b.stepPin, b.invertStep)
}

func (b *GPIOStepperBackend) SetDirection(reverse bool) {
	_ = b.gpio.SetPin(b.dirPin, reverse != b.invertDir)
}

// Stop leaves the step line idle.
func (b *GPIOStepperBackend) Stop() {
	_ = b.gpio.SetPin(b.stepPin, b.invertStep)
}

func (b *GPIOStepperBackend) GetName() string {
	return "gpio"
}
