package mylog

import (
	"context"
	"fmt"
	"os"
	"time"
)

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		New = newStandardLogger
	}
}

type standardLogger struct {
	componentName string
}

func newStandardLogger(componentName string) Logger {
	return standardLogger{
		componentName: componentName,
	}
}

func (l standardLogger) Log(c context.Context, traceLabel string, severity Severity, format string, a ...any) {
	fmt.Fprintf(os.Stderr, "%s - %s - %s - %s - %s\n", time.Now().Format(time.RFC3339), l.componentName, traceLabel, string(severity), fmt.Sprintf(format, a...))
}
