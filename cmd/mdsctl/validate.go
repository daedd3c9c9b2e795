package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"mds-backend/internal/logger"
	"mds-backend/internal/models"
	"mds-backend/internal/validation"
	appErrors "mds-backend/pkg/errors"
)

// validateCmd runs a payload through the same checks the agency API applies, without
// touching any store.
type validateCmd struct {
	in  io.Reader
	out io.Writer

	kind     string
	modality string
}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "checks an event, telemetry or device payload offline" }
func (*validateCmd) Usage() string {
	return `validate [-kind event|telemetry|device] [-modality micromobility|taxi|tnc] [file]
Reads stdin when no file is given.
`
}

func (p *validateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.kind, "kind", "event", "payload kind: event, telemetry or device")
	f.StringVar(&p.modality, "modality", string(models.ModalityMicromobility), "device modality the event is checked against")
}

func (p *validateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	in := p.in
	if path := f.Arg(0); path != "" && path != "-" {
		file, err := os.Open(path)
		if err != nil {
			logger.Error("Failed to open payload", zap.String("path", path), zap.Error(err))
			return subcommands.ExitFailure
		}
		defer file.Close()
		in = file
	}

	mdsErr, err := p.check(in)
	if err != nil {
		logger.Error("Failed to read payload", zap.String("kind", p.kind), zap.Error(err))
		return subcommands.ExitUsageError
	}

	if mdsErr != nil {
		_ = json.NewEncoder(p.out).Encode(mdsErr)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(p.out, "valid")
	return subcommands.ExitSuccess
}

func (p *validateCmd) check(in io.Reader) (*appErrors.MDSError, error) {
	decoder := json.NewDecoder(in)

	switch p.kind {
	case "event":
		var event models.VehicleEvent
		if err := decoder.Decode(&event); err != nil {
			return nil, err
		}
		if event.Telemetry != nil {
			event.Telemetry.DeviceID = event.DeviceID
			event.Telemetry.ProviderID = event.ProviderID
		}
		if mdsErr := validation.ValidateEvent(models.Modality(p.modality), &event); mdsErr != nil {
			return mdsErr, nil
		}
		if event.Telemetry != nil {
			return validation.ValidateTelemetry(event.Telemetry), nil
		}
		return nil, nil

	case "telemetry":
		var telemetry models.Telemetry
		if err := decoder.Decode(&telemetry); err != nil {
			return nil, err
		}
		return validation.ValidateTelemetry(&telemetry), nil

	case "device":
		var device models.Device
		if err := decoder.Decode(&device); err != nil {
			return nil, err
		}
		return validation.ValidateDevice(&device), nil

	default:
		return nil, fmt.Errorf("unknown kind %q", p.kind)
	}
}
