package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// cli is the state shared by one command tree.
type cli struct {
	cfgFile   string
	serverURL string
	logLevel  string

	settings Settings
	app      *App
}

// NewRootCmd builds the sloka command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "sloka",
		Short:         "Browse and publish sloka courses",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.config/sloka/config.yaml)")
	root.PersistentFlags().StringVar(&c.serverURL, "server", "", "server URL (overrides config)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (overrides config)")

	root.AddCommand(
		c.newPingCmd(),
		c.newRegisterCmd(),
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newWhoamiCmd(),
		c.newDashboardCmd(),
		c.newCoursesCmd(),
		c.newSectionsCmd(),
		c.newDocumentsCmd(),
		c.newStudentsCmd(),
		c.newEnrollCmd(),
		c.newUnenrollCmd(),
		c.newPreviewCmd(),
		c.newConfigCmd(),
	)
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func (c *cli) configPath() (string, error) {
	if c.cfgFile != "" {
		return c.cfgFile, nil
	}
	return GetConfigPath()
}

func (c *cli) loadSettings() error {
	path, err := c.configPath()
	if err != nil {
		return err
	}
	c.settings, err = LoadSettings(path)
	if err != nil {
		return err
	}
	if c.serverURL != "" {
		c.settings.ServerURL = c.serverURL
	}
	if c.logLevel != "" {
		c.settings.LogLevel = c.logLevel
	}
	return nil
}

// App loads settings and wires the components on first use.
func (c *cli) App(cmd *cobra.Command) (*App, error) {
	if c.app != nil {
		return c.app, nil
	}
	if err := c.loadSettings(); err != nil {
		return nil, err
	}
	app, err := NewApp(c.settings, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	c.app = app
	return app, nil
}

// run adapts a command body that needs the wired App. The App is closed
// when the body returns, whether or not it failed.
func (c *cli) run(fn func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := c.App(cmd)
		if err != nil {
			return err
		}
		defer c.closeApp()
		return fn(cmd.Context(), cmd, a, args)
	}
}

func (c *cli) closeApp() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}
