package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/student"
	"github.com/trezcool/usajili/services/genai"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	out        io.Writer
	db         *sqlx.DB
	studentSvc student.Service
	genai      *genai.Client
	httpClient *http.Client

	// connect opens the database and sets db & studentSvc. Only called by commands needing them.
	connect func(cli *commandLine) error
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                         - run a goose migration command (up, down, status, version...)")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL [-name NAME] [-admin]     - create or update a student; the password is prompted")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL                     - reset a student's password; the password is prompted")
	fmt.Fprintln(cli.out, "  fixindex [-table TABLE] [-index NAME] [-drop]  - inspect a table's indexes; drop a stale one")
	fmt.Fprintln(cli.out, "  smoke register [-url URL]                      - register a sample student against a running API")
	fmt.Fprintln(cli.out, "  smoke genai-models                             - list the generative language models")
	fmt.Fprintln(cli.out, "  smoke genai -prompt PROMPT [-model MODEL]      - generate content from a prompt")
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) ensureDB() error {
	if cli.db != nil || cli.connect == nil {
		return nil
	}
	return cli.connect(cli)
}

func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		if err := cli.ensureDB(); err != nil {
			return err
		}
		return cli.migrate(args[2:])

	case "adduser":
		fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
		fs.SetOutput(cli.out)
		email := fs.String("email", "", "The student's email.")
		name := fs.String("name", "", "The student's name. Defaults to the email's local part.")
		course := fs.String("course", "", "The student's course. Defaults to "+defaultCourse+" for new students.")
		isAdmin := fs.Bool("admin", false, "Grant admin rights.")
		if err := fs.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *email == "" {
			fs.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(fs)
		if err != nil {
			return err
		}
		if err = cli.ensureDB(); err != nil {
			return err
		}
		return cli.addUser(*name, *email, *course, pwd, *isAdmin)

	case "resetpassword":
		fs := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
		fs.SetOutput(cli.out)
		email := fs.String("email", "", "The student's email. The password will be prompted next.")
		if err := fs.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *email == "" {
			fs.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(fs)
		if err != nil {
			return err
		}
		if err = cli.ensureDB(); err != nil {
			return err
		}
		return cli.resetPassword(*email, pwd)

	case "fixindex":
		fs := flag.NewFlagSet("fixindex", flag.ContinueOnError)
		fs.SetOutput(cli.out)
		table := fs.String("table", "student", "The table to inspect.")
		index := fs.String("index", "", "The index to look for.")
		drop := fs.Bool("drop", false, "Drop -index if it exists.")
		if err := fs.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *drop && *index == "" {
			fs.Usage()
			return errHelp
		}
		if err := cli.ensureDB(); err != nil {
			return err
		}
		return cli.fixIndex(*table, *index, *drop)

	case "smoke":
		return cli.smoke(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}
