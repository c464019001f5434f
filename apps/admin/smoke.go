package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/usajili/core/student"
)

const smokeTimeout = 30 * time.Second

var nowFunc = time.Now // mockable

func (cli *commandLine) smokeUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  smoke register [-url URL] [-email EMAIL]  - register a sample student")
	fmt.Fprintln(cli.out, "  smoke genai-models                        - list the generative language models")
	fmt.Fprintln(cli.out, "  smoke genai -prompt PROMPT [-model MODEL] - generate content from a prompt")
}

// smoke runs a single request against an external service, prints the result and never retries.
func (cli *commandLine) smoke(args []string) error {
	if len(args) == 0 {
		cli.smokeUsage()
		return errHelp
	}

	ctx, cancel := context.WithTimeout(context.Background(), smokeTimeout)
	defer cancel()

	switch args[0] {
	case "register":
		fs := flag.NewFlagSet("smoke register", flag.ContinueOnError)
		fs.SetOutput(cli.out)
		baseURL := fs.String("url", "http://localhost"+cli.conf.Server.Host, "The API base URL.")
		email := fs.String("email", "", "The sample student's email. Defaults to a unique smoke+<timestamp>@test.cd")
		if err := fs.Parse(args[1:]); err != nil {
			return errHelp
		}
		return cli.smokeRegister(ctx, *baseURL, *email)

	case "genai-models":
		return cli.smokeGenAIModels(ctx)

	case "genai":
		fs := flag.NewFlagSet("smoke genai", flag.ContinueOnError)
		fs.SetOutput(cli.out)
		prompt := fs.String("prompt", "", "The prompt.")
		model := fs.String("model", "", "The model. Defaults to the configured model.")
		if err := fs.Parse(args[1:]); err != nil {
			return errHelp
		}
		if strings.TrimSpace(*prompt) == "" {
			fs.Usage()
			return errHelp
		}
		return cli.smokeGenAI(ctx, *model, *prompt)

	default:
		cli.smokeUsage()
		return errHelp
	}
}

func (cli *commandLine) smokeRegister(ctx context.Context, baseURL, email string) error {
	if email == "" {
		email = fmt.Sprintf("smoke+%d@test.cd", nowFunc().Unix())
	}
	body, err := json.Marshal(student.NewStudent{
		Name:            "Smoke Test",
		Email:           email,
		Course:          "Computer Science",
		Password:        "Zq8#mT4!vw",
		PasswordConfirm: "Zq8#mT4!vw",
	})
	if err != nil {
		return errors.Wrap(err, "encoding registration")
	}

	hc := cli.httpClient
	if hc == nil {
		hc = http.DefaultClient
	}
	rc := &rest.Client{HTTPClient: hc}
	res, err := rc.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: strings.TrimRight(baseURL, "/") + "/api/students/register",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
	if err != nil {
		return errors.Wrap(err, "registering")
	}

	cli.printf("%d %s\n%s\n", res.StatusCode, http.StatusText(res.StatusCode), res.Body)
	if res.StatusCode != http.StatusCreated {
		return errors.Errorf("registering: unexpected status %d", res.StatusCode)
	}
	return nil
}

func (cli *commandLine) smokeGenAIModels(ctx context.Context) error {
	models, err := cli.genai.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		cli.printf("%s\t%s\t%s\n", m.Name, m.DisplayName, strings.Join(m.SupportedGenerationMethods, ","))
	}
	cli.printf("%d models\n", len(models))
	return nil
}

func (cli *commandLine) smokeGenAI(ctx context.Context, model, prompt string) error {
	if model == "" {
		model = cli.genai.DefaultModel()
	}
	text, err := cli.genai.GenerateContent(ctx, model, prompt)
	if err != nil {
		return err
	}
	cli.printf("[%s]\n%s\n", model, text)
	return nil
}
