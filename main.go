//go:build windows

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/phuslu/log"

	"github.com/quentin-nozomi/etw-typed/etw"
	"github.com/quentin-nozomi/etw-typed/winguid"
)

const (
	traceSessionName = "TypedTraceSession"
)

const (
	sysmonGUID = "{5770385F-C22A-43E0-BF4C-06F5698FFBD9}"
)

// Requires elevated privileges
func main() {
	consoleLogger := log.Logger{
		Level:  log.DebugLevel,
		Writer: &log.ConsoleWriter{ColorOutput: true},
	}
	etw.SetLogger(&consoleLogger)

	providerGUID := winguid.MustParse(sysmonGUID)

	// Sysmon event 1: process creation
	shapes, shapeErr := etw.NewShapeSet(etw.EventShape{
		Name:         "ProcessCreate",
		ProviderGUID: providerGUID,
		EventID:      1,
		Version:      5,
		Fields: []etw.FieldDescriptor{
			{Name: "RuleName", InType: etw.InTypeUnicodeString},
			{Name: "UtcTime", InType: etw.InTypeUnicodeString},
			{Name: "ProcessGuid", InType: etw.InTypeGUID},
			{Name: "ProcessId", InType: etw.InTypeUint32, Length: 4},
			{Name: "Image", InType: etw.InTypeUnicodeString},
		},
	})
	if shapeErr != nil {
		panic(shapeErr)
	}

	session, sessionErr := etw.StartSession(traceSessionName, etw.SessionOptions{
		ClosePrevious: true,
	})
	if sessionErr != nil {
		panic(sessionErr)
	}
	defer session.Close()

	enableErr := session.EnableProvider(etw.ProviderConfig{
		GUID: providerGUID,
		Name: "Microsoft-Windows-Sysmon",
	})
	if enableErr != nil {
		panic(enableErr)
	}

	binder := etw.NewBinder(shapes, etw.NewSystemCatalog())

	trace, traceErr := etw.OpenSessionTrace(session, binder, printEvent)
	if traceErr != nil {
		panic(traceErr)
	}
	defer trace.Stop()

	if err := trace.StartProcessing(time.Now().Add(20 * time.Second)); err != nil {
		panic(err)
	}

	if err := trace.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printEvent(event *etw.DecodedEvent) {
	if !event.Matched() {
		return
	}
	if event.Err != nil {
		fmt.Printf("%s: %v\n", event.Shape.Name, event.Err)
		return
	}
	image := ""
	if field, ok := event.Field("Image"); ok {
		image, _ = field.Str()
	}
	pid := uint64(0)
	if field, ok := event.Field("ProcessId"); ok {
		pid, _ = field.Uint(0)
	}
	fmt.Printf("%s pid=%d image=%s at %s\n",
		event.Shape.Name, pid, image, event.Record.Header.TimestampUTC.Format(time.RFC3339))
}
