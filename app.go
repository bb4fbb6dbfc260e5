package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/ssgreg/repeat"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
	"github.com/TxnLab/autofarm-diamond/internal/lib/signer"
)

const (
	chainDBName        = "chain.db"
	deploymentFileName = "deployment.json"
)

var logLevel = new(slog.LevelVar) // Info by default

func initApp() *FarmApp {
	log.SetFlags(0)
	// Are we running on something where output is a tty - so we're being run as CLI vs as a daemon
	logger := misc.NewLogger(os.Stdout, logLevel, term.IsTerminal(int(os.Stdout.Fd())))
	slog.SetDefault(logger)
	if os.Getenv("DEBUG") == "1" {
		logLevel.Set(slog.LevelDebug)
	}

	misc.LoadEnvSettings(logger)

	// We initialize our wrapper instance first, so we can call its methods in the 'Before' lambda func
	// in initialization of cli App instance.
	// signer will be set in the initClients method.
	appConfig := &FarmApp{logger: logger}

	appConfig.cliCmd = &cli.Command{
		Name:    "diamondmgr",
		Usage:   "Deploy and operate AutoFarm diamond routers",
		Version: misc.GetVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			return appConfig.initClients(ctx, cmd)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "envfile",
				Usage:   "env file to load",
				Sources: cli.EnvVars("FARM_ENVFILE"),
				Aliases: []string{"e"},
			},
			&cli.StringFlag{
				Name:        "datadir",
				Usage:       "Directory holding the chain database and deployment file. Defaults to the user config dir",
				Sources:     cli.EnvVars("FARM_DATADIR"),
				Destination: &appConfig.dataDir,
				OnlyOnce:    true,
			},
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Deployment file to use instead of the one in the data directory",
				Sources:     cli.EnvVars("FARM_CONFIG"),
				Destination: &appConfig.configFile,
				OnlyOnce:    true,
			},
			&cli.StringFlag{
				Name:        "from",
				Usage:       "Account that signs state changing calls. Its mnemonic must be in a FARM_MNEMONIC env var",
				Sources:     cli.EnvVars("FARM_FROM"),
				Aliases:     []string{"f"},
				Destination: &appConfig.from,
				OnlyOnce:    true,
			},
			&cli.DurationFlag{
				Name:        "store-timeout",
				Usage:       "How long to wait on the chain database lock held by another process",
				Sources:     cli.EnvVars("FARM_STORE_TIMEOUT"),
				Value:       2 * time.Second,
				Destination: &appConfig.storeTimeout,
			},
		},
		Commands: []*cli.Command{
			GetDaemonCmdOpts(),
			GetDeployCmdOpts(),
			GetFacetCmdOpts(),
			GetOwnerCmdOpts(),
			GetPoolCmdOpts(),
			GetStakeCmdOpts(),
			GetTokenCmdOpts(),
			GetKeyCmdOpts(),
		},
	}
	return appConfig
}

var errNoSender = errors.New("no --from account set")

type FarmApp struct {
	cliCmd *cli.Command
	logger *slog.Logger
	signer signer.MultipleWalletSigner

	// set by checkDeployed for commands working against existing routers
	deployment *DeploymentInfo

	// just here for flag bootstrapping destination
	dataDir      string
	configFile   string
	from         string
	storeTimeout time.Duration
}

// initClients loads the optional env file and then the local key store, which reads its mnemonics from the
// environment.
func (ac *FarmApp) initClients(ctx context.Context, cmd *cli.Command) error {
	if envfile := cmd.String("envfile"); envfile != "" {
		if err := misc.LoadEnvFile(ac.logger, envfile); err != nil {
			return err
		}
	}
	keyStore, err := signer.NewLocalKeyStore(ac.logger)
	if err != nil {
		return err
	}
	ac.signer = keyStore
	return nil
}

func (ac *FarmApp) dataDirPath() (string, error) {
	if ac.dataDir != "" {
		return ac.dataDir, nil
	}
	return defaultDataDir()
}

func (ac *FarmApp) chainPath() (string, error) {
	dir, err := ac.dataDirPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, chainDBName), nil
}

func (ac *FarmApp) deploymentPath() (string, error) {
	dir, err := ac.dataDirPath()
	if err != nil {
		return "", err
	}
	return ac.deploymentPathIn(dir), nil
}

// deploymentPathIn is the --config file, or the deployment file inside dataDir.
func (ac *FarmApp) deploymentPathIn(dataDir string) string {
	if ac.configFile != "" {
		return ac.configFile
	}
	return filepath.Join(dataDir, deploymentFileName)
}

// withChain loads the chain from the data directory, runs fn against it and writes the chain back. The
// chain is saved even when fn fails, so nonces consumed by reverted calls and blocks already mined persist.
func (ac *FarmApp) withChain(ctx context.Context, fn func(c *chain.Chain) error) error {
	dbPath, err := ac.chainPath()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, ac.logger, dbPath, ac.storeTimeout)
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := loadChain(ac.logger, store)
	if err != nil {
		return err
	}
	fnErr := fn(c)
	if err := store.Save(c); err != nil {
		return errors.Join(fnErr, fmt.Errorf("saving chain: %w", err))
	}
	return fnErr
}

// sender returns a backend that signs calls as the --from account.
func (ac *FarmApp) sender(c *chain.Chain) (*signer.Backend, error) {
	if ac.from == "" {
		return nil, errNoSender
	}
	addr, err := types.DecodeAddress(ac.from)
	if err != nil {
		return nil, fmt.Errorf("invalid --from address %s: %w", ac.from, err)
	}
	if !ac.signer.HasAccount(addr) {
		return nil, fmt.Errorf("%w: %s, set a %s env var w/ its mnemonic", signer.ErrKeyNotFound, addr, signer.MnemonicEnvPrefix)
	}
	return signer.NewBackend(c, addr, signer.SignWithAccount(ac.signer, addr)), nil
}

// reader returns a backend for read-only queries. Reads aren't signed so any account, including none, works.
func (ac *FarmApp) reader(c *chain.Chain) method.Backend {
	if backend, err := ac.sender(c); err == nil {
		return backend
	}
	return c.Session(types.Address{})
}

func checkDeployed(ctx context.Context, command *cli.Command) error {
	cfgPath, err := App.deploymentPath()
	if err != nil {
		return err
	}
	info, err := LoadDeploymentInfo(cfgPath)
	if err != nil {
		return fmt.Errorf("routers not deployed (run 'deploy' first): %w", err)
	}
	App.deployment = info
	return nil
}

// openStore opens the chain database, retrying while another process holds it.
func openStore(ctx context.Context, logger *slog.Logger, dbPath string, timeout time.Duration) (*chain.BoltStore, error) {
	var store *chain.BoltStore
	err := repeat.Repeat(
		repeat.Fn(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			store, err = chain.OpenBoltStore(dbPath, timeout)
			if err != nil {
				return repeat.HintTemporary(err)
			}
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(5),
		repeat.FnOnError(func(err error) error {
			misc.Warnf(logger, "retrying open of chain store %s, error:%v", dbPath, err)
			return err
		}),
		repeat.WithDelay(
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 250 * time.Millisecond,
				MaxDelay:  2 * time.Second,
			}).Set(),
		),
	)
	return store, err
}

// loadChain returns the saved chain, or a fresh one if nothing was saved yet.
func loadChain(logger *slog.Logger, store *chain.BoltStore) (*chain.Chain, error) {
	c, err := store.Load(logger)
	if errors.Is(err, chain.ErrEmptyStore) {
		misc.Infof(logger, "starting new chain")
		return chain.New(logger), nil
	}
	return c, err
}

func defaultDataDir() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, "autofarm-diamond"), nil
}
