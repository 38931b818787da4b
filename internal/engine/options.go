package engine

import "fmt"

// Model sizes the recognizer can load.
const (
	ModelSmall   = "small"
	ModelMedium  = "medium"
	ModelLargeV3 = "large-v3"
)

// Devices the recognizer can run on.
const (
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// Compute precisions.
const (
	ComputeFloat16     = "float16"
	ComputeInt8Float16 = "int8_float16"
	ComputeInt8        = "int8"
)

// LanguageAuto asks the engine to detect the language itself.
const LanguageAuto = "auto"

// Options selects the model and decoding parameters for one recognition run.
type Options struct {
	ModelSize   string
	Device      string
	ComputeType string
	BeamSize    int
	Language    string
}

// ValidationError reports a rejected submission parameter. It is terminal
// for the job and never silently corrected.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// Validate rejects unknown or out-of-range parameters.
func (o Options) Validate() error {
	switch o.ModelSize {
	case ModelSmall, ModelMedium, ModelLargeV3:
	default:
		return &ValidationError{
			Field:   "model_size",
			Value:   o.ModelSize,
			Message: "must be one of small, medium, large-v3",
		}
	}

	switch o.Device {
	case DeviceCUDA, DeviceCPU:
	default:
		return &ValidationError{
			Field:   "device",
			Value:   o.Device,
			Message: "must be cuda or cpu",
		}
	}

	switch o.ComputeType {
	case ComputeFloat16, ComputeInt8Float16, ComputeInt8:
	default:
		return &ValidationError{
			Field:   "compute_type",
			Value:   o.ComputeType,
			Message: "must be one of float16, int8_float16, int8",
		}
	}

	if o.BeamSize < 1 {
		return &ValidationError{
			Field:   "beam_size",
			Value:   fmt.Sprintf("%d", o.BeamSize),
			Message: "must be a positive integer",
		}
	}

	if o.Language == "" {
		return &ValidationError{
			Field:   "language",
			Value:   o.Language,
			Message: "must be a language code or auto",
		}
	}

	return nil
}
