// mediarelay builds one module from a configuration string and forwards
// every received frame to every output pin, for example:
//
//	mediarelay --control-port 5555 \
//	    --config 'type=relay,in_type=udp,in_port=5000,out_type=tcp,out_host=10.0.0.1,out_port=6000'
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/mediamodule"
	"github.com/xaionaro-go/observability"
)

func main() {
	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	config := pflag.String("config", "", "the module configuration string (comma-separated key=value tokens)")
	controlPort := pflag.Int("control-port", 0, "the control channel port (0 disables the control channel)")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()
	if *config == "" {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	ctx, cancelFn := context.WithCancel(ctx)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	callback := func(
		ctx context.Context,
		userData any,
		hModule mediamodule.ModuleHandle,
		hPin mediamodule.PinHandle,
		hFrame mediamodule.FrameHandle,
		cmd mediamodule.Command,
	) {
		switch cmd {
		case mediamodule.CommandTick:
			outputCount := mediamodule.GetOutputCount(ctx, hModule)
			for i := 0; i < outputCount; i++ {
				hOut := mediamodule.GetOutputHandle(ctx, hModule, i)
				mediamodule.Send(ctx, hModule, hOut, hFrame)
			}
		case mediamodule.CommandQuit:
			l.Infof("the input stream on pin #%d ended", hPin)
			cancelFn()
		}
	}

	hModule := mediamodule.CreateModule(ctx, *controlPort, callback, *config)
	if hModule == mediamodule.InvalidModuleHandle {
		l.Fatal("unable to create the module")
	}

	if ret := mediamodule.StartModule(ctx, hModule); ret != 0 {
		l.Fatal("unable to start the module")
	}
	defer mediamodule.Close(ctx, hModule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case sig := <-sigChan:
			l.Infof("got signal %v, closing", sig)
			return
		case <-ctx.Done():
			return
		case <-t.C:
			fmt.Printf(
				"frames in pool: %d/%d\n",
				mediamodule.GetParameter(ctx, mediamodule.ParameterCurFramesInList),
				mediamodule.GetParameter(ctx, mediamodule.ParameterMaxFramesInList),
			)
		}
	}
}
