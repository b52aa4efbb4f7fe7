package main

import (
	"context"
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/vigil-agent/vigil/internal/app"
)

// program adapts the runtime to the system service manager.
type program struct {
	cmd    *cobra.Command
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)

	go func() {
		cfg, err := loadConfig(p.cmd)
		if err != nil {
			p.done <- err
			return
		}
		a, err := app.New(ctx, *cfg, version)
		if err != nil {
			p.done <- err
			return
		}
		p.done <- a.Run(ctx)
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	p.cancel()
	return <-p.done
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service [install|uninstall|start|stop|restart|run]",
		Short:     "Manage vigil as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "restart", "run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			svcConfig := &service.Config{
				Name:        "vigil",
				DisplayName: "vigil agent",
				Description: "Guarded analytics agent for SRAG surveillance data",
				Arguments:   []string{"service", "run"},
			}
			if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
				svcConfig.Arguments = append(svcConfig.Arguments, "--config", cfgPath)
			}

			prg := &program{cmd: cmd}
			svc, err := service.New(prg, svcConfig)
			if err != nil {
				return err
			}

			action := args[0]
			if action == "run" {
				// Blocks until the service manager (or a signal) stops us.
				return svc.Run()
			}

			if err := service.Control(svc, action); err != nil {
				return err
			}
			fmt.Printf("service %s: ok\n", action)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
