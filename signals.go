package ferry

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for engine events.
var (
	SignalEngineCreated = capitan.NewSignal("ferry.engine.created", "Engine instantiated")
	SignalWriteStart    = capitan.NewSignal("ferry.write.start", "Write operation beginning")
	SignalWriteComplete = capitan.NewSignal("ferry.write.complete", "Write operation finished")
	SignalReadStart     = capitan.NewSignal("ferry.read.start", "Read operation beginning")
	SignalReadComplete  = capitan.NewSignal("ferry.read.complete", "Read operation finished")
	SignalLockReleased  = capitan.NewSignal("ferry.lock.released", "Wire conversion ran without the host lock")
)

// Keys for typed event data.
var (
	KeyTypeName = capitan.NewStringKey("type_name")
	KeyStage    = capitan.NewStringKey("stage")
	KeySize     = capitan.NewIntKey("size")
	KeyMaxDepth = capitan.NewIntKey("max_depth")
	KeyMaxSize  = capitan.NewIntKey("max_size")
	KeyDuration = capitan.NewDurationKey("duration")
	KeyError    = capitan.NewErrorKey("error")
)

func emitEngineCreated(ctx context.Context, cfg Config) {
	capitan.Emit(ctx, SignalEngineCreated,
		KeyMaxDepth.Field(cfg.MaxDepth),
		KeyMaxSize.Field(cfg.MaxSize),
	)
}

func emitWriteStart(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalWriteStart,
		KeyTypeName.Field(typeName),
	)
}

func emitWriteComplete(ctx context.Context, typeName string, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalWriteComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalWriteComplete, fields...)
	}
}

func emitReadStart(ctx context.Context, size int) {
	capitan.Emit(ctx, SignalReadStart,
		KeySize.Field(size),
	)
}

func emitReadComplete(ctx context.Context, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalReadComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalReadComplete, fields...)
	}
}

// emitLockReleased reports how long a stage ran without the host lock. It
// is emitted after the lock has been re-acquired.
func emitLockReleased(ctx context.Context, stage string, duration time.Duration) {
	capitan.Emit(ctx, SignalLockReleased,
		KeyStage.Field(stage),
		KeyDuration.Field(duration),
	)
}
