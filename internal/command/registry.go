// Package command decodes and dispatches EWDC command payloads. The
// registry maps ops to handlers; handlers validate payload sizes strictly,
// decode in wire order and drive the Document interface. History capture
// and event emission live behind that interface, not here.
package command

import (
	"go.uber.org/zap"

	"github.com/ewdc/engine/internal/proto"
)

// HandlerFunc is the callback signature for command handlers. The reader
// is positioned at the start of the command payload.
type HandlerFunc func(cmd proto.Command, r *proto.Reader) proto.EngineError

// ExtensionFunc is offered any command no built-in handler claims.
// Returning UnknownCommand passes the command to the next extension.
type ExtensionFunc func(cmd proto.Command) proto.EngineError

// Registry maps ops to handlers, with an ordered extension chain for ops
// outside the built-in set.
type Registry struct {
	handlers   map[proto.Op]HandlerFunc
	extensions []ExtensionFunc
	log        *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[proto.Op]HandlerFunc),
		log:      log,
	}
}

// Register maps an op to a handler.
func (reg *Registry) Register(op proto.Op, fn HandlerFunc) {
	reg.handlers[op] = fn
}

// RegisterExtension appends an extension handler. Extensions are tried in
// registration order when no built-in handler matches.
func (reg *Registry) RegisterExtension(fn ExtensionFunc) {
	reg.extensions = append(reg.extensions, fn)
}

// Dispatch finds the handler for the command's op and calls it. Unknown
// ops go through the extension chain before UnknownCommand is returned.
func (reg *Registry) Dispatch(cmd proto.Command) proto.EngineError {
	reg.log.Debug("收到指令",
		zap.String("op", cmd.Op.String()),
		zap.Uint32("id", cmd.ID),
		zap.Int("size", len(cmd.Payload)),
	)

	fn, ok := reg.handlers[cmd.Op]
	if !ok {
		for _, ext := range reg.extensions {
			if err := ext(cmd); err != proto.UnknownCommand {
				return err
			}
		}
		reg.log.Debug("未知操作碼", zap.Uint32("op", uint32(cmd.Op)))
		return proto.UnknownCommand
	}

	return reg.safeCall(fn, cmd)
}

// safeCall executes a handler with panic recovery so one malformed command
// cannot take down the document goroutine.
func (reg *Registry) safeCall(fn HandlerFunc, cmd proto.Command) (err proto.EngineError) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.String("op", cmd.Op.String()),
				zap.Uint32("id", cmd.ID),
				zap.Any("panic", rec),
			)
			err = proto.InvalidOperation
		}
	}()
	return fn(cmd, proto.NewReader(cmd.Payload))
}
