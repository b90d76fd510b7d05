package worker

import (
	"fmt"

	"github.com/caption-studio/internal/logging"
)

// asynqLogger routes asynq's internal logs through the service logger
type asynqLogger struct {
	logger *logging.Logger
}

func (a *asynqLogger) Debug(args ...interface{}) { a.logger.Debug(fmt.Sprint(args...)) }
func (a *asynqLogger) Info(args ...interface{})  { a.logger.Info(fmt.Sprint(args...)) }
func (a *asynqLogger) Warn(args ...interface{})  { a.logger.Warn(fmt.Sprint(args...)) }
func (a *asynqLogger) Error(args ...interface{}) { a.logger.Error(fmt.Sprint(args...)) }

// Fatal logs and panics rather than exiting so the process can shut down
// its other components.
func (a *asynqLogger) Fatal(args ...interface{}) {
	msg := fmt.Sprint(args...)
	a.logger.Error(msg)
	panic(msg)
}
