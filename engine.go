package ferry

import (
	"bytes"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/zoobzio/ferry/errors"
	"github.com/zoobzio/ferry/ir"
	"github.com/zoobzio/ferry/wire"
)

// Engine sequences the conversion stages for one configuration.
//
// Engines are safe for concurrent use. Each call owns its IR, so any number
// of calls may be in their lock-released stage at once.
type Engine struct {
	cfg  Config
	lock Lock
}

// New creates an Engine. Without options it uses DefaultConfig and a
// NopLock.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:  DefaultConfig(),
		lock: NopLock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.lock == nil {
		e.lock = NopLock{}
	}
	e.cfg.Rules = e.cfg.Rules.withDefaults()
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	Logger().Debug("engine created",
		zap.Int("max_depth", e.cfg.MaxDepth),
		zap.Int("max_size", e.cfg.MaxSize),
		zap.Bool("strict", e.cfg.Strict),
	)
	emitEngineCreated(context.Background(), e.cfg)
	return e, nil
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Write converts a host value tree into BSON bytes.
//
// The caller holds the engine's Lock on entry and holds it again on return.
// Extraction runs under the lock; encoding runs with it released. On error
// no bytes are returned.
func (e *Engine) Write(ctx context.Context, v any) ([]byte, error) {
	start := time.Now()
	name := typeName(v)
	emitWriteStart(ctx, name)

	out, err := e.write(ctx, v)

	emitWriteComplete(ctx, name, len(out), time.Since(start), err)
	if err != nil {
		return nil, surface("write", err)
	}
	return out, nil
}

func (e *Engine) write(ctx context.Context, v any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := Extract(ctx, v, e.cfg)
	if err != nil {
		return nil, err
	}

	var out []byte
	err = e.unlocked(ctx, errors.StageEncode, func() error {
		var encErr error
		out, encErr = wire.Encode(ctx, doc, e.cfg.limits())
		return encErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Read converts BSON bytes into a host document.
//
// The caller holds the engine's Lock on entry and holds it again on return.
// data is copied before the lock is released, so the caller may reuse it
// as soon as Read returns.
func (e *Engine) Read(ctx context.Context, data []byte) (bson.D, error) {
	start := time.Now()
	emitReadStart(ctx, len(data))

	doc, err := e.read(ctx, data)

	emitReadComplete(ctx, len(data), time.Since(start), err)
	if err != nil {
		return nil, surface("read", err)
	}
	return Materialize(doc), nil
}

func (e *Engine) read(ctx context.Context, data []byte) (ir.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) > e.cfg.MaxSize {
		return nil, errors.DocumentTooLarge(len(data), e.cfg.MaxSize).At(errors.StageDecode, nil)
	}

	owned := bytes.Clone(data)

	var doc ir.Document
	err := e.unlocked(ctx, errors.StageDecode, func() error {
		var decErr error
		doc, decErr = wire.Decode(ctx, owned, e.cfg.limits())
		return decErr
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// CheckCollection validates a collection name against the engine's ruleset.
func (e *Engine) CheckCollection(name string) error {
	if err := e.cfg.Rules.CheckCollection(name); err != nil {
		return surface("check_collection", err)
	}
	return nil
}

// unlocked runs fn with the host lock released and reports the time spent
// once the lock is held again.
func (e *Engine) unlocked(ctx context.Context, stage errors.Stage, fn func() error) error {
	start := time.Now()
	err := unlocked(e.lock, stage, fn)
	emitLockReleased(ctx, string(stage), time.Since(start))
	return err
}
