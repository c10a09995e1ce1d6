package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calehh/propvote/app"
	"github.com/calehh/propvote/config"
	"github.com/calehh/propvote/indexer"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "propvote",
	Short: "propvote runs a proposal and quorum voting chain",
	Long: `propvote is a CometBFT application that keeps a registry of
proposals. Accounts create proposals and vote on them once each, and a
proposal is accepted when its votes reach the quorum.`,
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&homeDir, "homedir", "d", "", "home directory")
}

func run(cmd *cobra.Command, args []string) {
	if homeDir == "" {
		homeDir = config.DefaultHome()
	}
	appConfig, err := config.LoadConfig(homeDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pv := privval.LoadFilePV(
		appConfig.PrivValidatorKeyFile(),
		appConfig.PrivValidatorStateFile(),
	)

	nodeKey, err := p2p.LoadNodeKey(appConfig.NodeKeyFile())
	if err != nil {
		log.Fatalf("failed to load node's key: %v", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(appConfig.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}

	metrics := app.NopMetrics()
	if appConfig.Instrumentation.Prometheus {
		metrics = app.PrometheusMetrics()
	}
	voteApp, err := app.NewVoteApp(appConfig.App, logger, metrics)
	if err != nil {
		log.Fatalf("new App err:%v", err)
	}

	node, err := nm.NewNode(
		appConfig.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(voteApp),
		nm.DefaultGenesisDocProviderFunc(appConfig.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(appConfig.Instrumentation),
		logger,
	)
	if err != nil {
		log.Fatalf("Creating node: %v", err)
	}

	err = node.Start()
	if err != nil {
		log.Fatalf("start comet node err %s", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	var service *indexer.Service
	var chainIndexer *indexer.ChainIndexer
	if appConfig.App.IndexerEnabled {
		rpcUrl, err := url.Parse(appConfig.RPC.ListenAddress)
		if err != nil {
			log.Fatalf("parse rpc url err %s", err.Error())
		}
		rpcUrl.Scheme = "http"
		chainIndexer, err = indexer.NewChainIndexer(logger, appConfig.App.IndexerDBFile(), rpcUrl.String(), appConfig.App.IndexerPollInterval)
		if err != nil {
			log.Fatalf("new chain indexer err %s", err.Error())
		}
		go chainIndexer.Start(ctx)

		service = indexer.NewService(logger, appConfig.App.ServiceListenAddr, chainIndexer)
		go func() {
			if err := service.Start(); err != nil {
				logger.Error("service stopped", "err", err)
			}
		}()
	}

	defer func() {
		log.Println("shut down...")
		done := make(chan struct{})
		go func() {
			defer close(done)
			cancel()
			if service != nil {
				sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer scancel()
				if err := service.Stop(sctx); err != nil {
					logger.Error("stop service fail", "err", err)
				}
			}
			if chainIndexer != nil {
				if err := chainIndexer.Close(); err != nil {
					logger.Error("close indexer fail", "err", err)
				}
			}
			if err := node.Stop(); err != nil {
				logger.Error("stop comet node fail", "err", err)
			}
			node.Wait()
			voteApp.Stop()
		}()
		timer := time.NewTimer(shutdownTimeout)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
			return
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
