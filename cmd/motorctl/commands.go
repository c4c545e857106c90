package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/motorctl/internal/config"
	"github.com/danmuck/motorctl/internal/motor"
	"github.com/spf13/cobra"
)

func runCmd(opts *rootOptions) *cobra.Command {
	var (
		velocity     float32
		mode         int8
		statusListen string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stream velocity commands until interrupted, then stop the actuator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("velocity") {
				cfg.Session.Velocity = velocity
			}
			if flags.Changed("mode") {
				cfg.Session.ControlMode = mode
			}
			if flags.Changed("status-listen") {
				cfg.StatusListen = statusListen
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, closeLog := initLogger(cfg)
			defer closeLog()

			ch, err := openChannel(cfg)
			if err != nil {
				return err
			}
			defer ch.Close()

			sup, err := motor.NewSupervisor(ch, cfg.Session, motor.LogReporter{Logger: logger}, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			statusCtx, stopStatus := context.WithCancel(context.WithoutCancel(ctx))
			statusDone := make(chan struct{})
			if cfg.StatusListen != "" {
				srv := motor.NewStatusServer(cfg.StatusListen, sup, logger)
				go func() {
					defer close(statusDone)
					if err := srv.Serve(statusCtx); err != nil {
						logger.Error().Err(err).Msg("status server failed")
					}
				}()
			} else {
				close(statusDone)
			}

			err = sup.Run(ctx)
			stopStatus()
			<-statusDone
			return err
		},
	}
	cmd.Flags().Float32Var(&velocity, "velocity", 0, "target velocity in revolutions per second")
	cmd.Flags().Int8Var(&mode, "mode", 16, "control mode written every cycle")
	cmd.Flags().StringVar(&statusListen, "status-listen", "", "serve /health, /status and /metrics on this address")
	return cmd
}

func stopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Send one safe-stop to the actuator and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			logger, closeLog := initLogger(cfg)
			defer closeLog()

			ch, err := openChannel(cfg)
			if err != nil {
				return err
			}
			defer ch.Close()

			if err := motor.SendSafeStop(cmd.Context(), ch); err != nil {
				return err
			}
			logger.Info().Uint8("addr", ch.Address()).Msg("safe-stop sent")
			fmt.Fprintln(cmd.OutOrStdout(), "stopped")
			return nil
		},
	}
}

func queryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query",
		Short: "Read mode, velocity and gain term once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			_, closeLog := initLogger(cfg)
			defer closeLog()

			ch, err := openChannel(cfg)
			if err != nil {
				return err
			}
			defer ch.Close()

			sample, err := motor.ReadSample(cmd.Context(), ch)
			if errors.Is(err, motor.ErrNoReply) {
				return fmt.Errorf("actuator %d did not answer", ch.Address())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mode=%d velocity=%.3f rps gain_term=%.3f\n",
				sample.Mode, sample.Velocity, sample.GainTerm)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config file helpers",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprint(cmd.OutOrStdout(), config.Template())
				return nil
			}
			if err := config.WriteTemplate(args[0], force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
