package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mithrel/inkwell/internal/present"
	"github.com/mithrel/inkwell/internal/session"
	"github.com/mithrel/inkwell/internal/wire"
)

const defaultPager = "less -FRSX"

var errNotSignedIn = fmt.Errorf("%w; run `inkwell-cli user login`", session.ErrNotAuthenticated)

func tokenStore(app *wire.App) (session.TokenStore, error) {
	return session.NewTokenStore(app.Cfg.GetString("session.store"), app.Cfg.GetString("data_dir"))
}

// currentSession rebuilds the signed-in session from the saved token.
func currentSession(app *wire.App) (session.Session, error) {
	st, err := tokenStore(app)
	if err != nil {
		return session.Session{}, err
	}
	tok, err := st.Load()
	if err != nil {
		return session.Session{}, fmt.Errorf("read session: %w", err)
	}
	if tok == "" {
		return session.Session{}, errNotSignedIn
	}
	sess, err := app.Signer.Parse(tok)
	if err != nil {
		return session.Session{}, fmt.Errorf("%w; run `inkwell-cli user login`", err)
	}
	return sess, nil
}

// presentOptions resolves the output mode and the owner's theme.
func presentOptions(cmd *cobra.Command, app *wire.App, sess session.Session, headers bool) (present.Options, error) {
	mode, ok := present.ParseMode(app.Cfg.GetString("output"))
	if !ok {
		return present.Options{}, fmt.Errorf("invalid output mode: %s", app.Cfg.GetString("output"))
	}
	opts := present.Options{Mode: mode, Headers: headers}
	if mode == present.ModePretty {
		if t, err := app.Settings.Theme(cmd.Context(), sess); err == nil {
			opts.Theme = t
		} else {
			app.Log.Warn("theme lookup failed", "err", err)
		}
	}
	return opts, nil
}

// withPager sends long output through $PAGER when stdout is a terminal.
func withPager(ctx context.Context, out, errOut io.Writer, write func(io.Writer) error) error {
	outFile, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(outFile.Fd())) {
		return write(out)
	}
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = defaultPager
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", pager)
	cmd.Stdout = outFile
	if errFile, ok := errOut.(*os.File); ok {
		cmd.Stderr = errFile
	} else {
		cmd.Stderr = os.Stderr
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return write(out)
	}
	if err := cmd.Start(); err != nil {
		return write(out)
	}
	writeErr := write(stdin)
	_ = stdin.Close()
	waitErr := cmd.Wait()
	if writeErr != nil {
		return writeErr
	}
	return waitErr
}
