package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ParameterType selects the SSM storage type for a step.
type ParameterType int

const (
	// ParamSecureString is encrypted at rest.
	ParamSecureString ParameterType = iota
	// ParamString is stored in plaintext.
	ParamString
)

// InputSource describes where a step's value comes from.
type InputSource int

const (
	// SourcePrompt asks the operator.
	SourcePrompt InputSource = iota
	// SourceFixed uses BootstrapStep.FixedValue.
	SourceFixed
)

// BootstrapStep is one parameter in the credential inventory.
type BootstrapStep struct {
	HumanLabel string

	// SSMCategoryKey is appended to /{env}/contentpilot/.
	SSMCategoryKey string

	// EnvVar is the variable the service reads the value from.
	EnvVar string

	ParamType  ParameterType
	Source     InputSource
	FixedValue string
	Prompt     string

	// ValidateFn checks the raw input. Nil accepts anything non-empty.
	ValidateFn func(ctx context.Context, input string) ValidationResult

	// IsSecret masks input on a terminal.
	IsSecret bool

	// Optional steps are skipped on empty input, or always with SkipOptional.
	Optional bool

	Phase string
}

// maxRetries is the number of validation failures allowed per step.
const maxRetries = 5

var errSkipped = errors.New("parameter skipped by operator")

// BuildInventory returns the ordered credential inventory. Every platform
// is optional: a platform left unset is reported as not configured at
// publish time.
func BuildInventory(v *Validator) []BootstrapStep {
	return []BootstrapStep{
		{
			HumanLabel:     "WordPress Site URL",
			SSMCategoryKey: "platforms/wordpress_site_url",
			EnvVar:         "WORDPRESS_SITE_URL",
			ParamType:      ParamString,
			Source:         SourcePrompt,
			Prompt:         `Paste the site root, e.g. https://blog.example.com (or press Enter to skip):`,
			ValidateFn:     v.ValidateSiteURL,
			Optional:       true,
			Phase:          "WordPress",
		},
		{
			HumanLabel:     "WordPress Username",
			SSMCategoryKey: "platforms/wordpress_username",
			EnvVar:         "WORDPRESS_USERNAME",
			ParamType:      ParamString,
			Source:         SourcePrompt,
			Prompt:         `Paste the WordPress user that owns the application password (or press Enter to skip):`,
			Optional:       true,
			Phase:          "WordPress",
		},
		{
			HumanLabel:     "WordPress Application Password",
			SSMCategoryKey: "platforms/wordpress_app_password",
			EnvVar:         "WORDPRESS_APP_PASSWORD",
			ParamType:      ParamSecureString,
			Source:         SourcePrompt,
			Prompt: `1. In wp-admin go to Users > Profile > Application Passwords.
   2. Create a password named "contentpilot".
   3. Paste it here (or press Enter to skip):`,
			ValidateFn: func(ctx context.Context, input string) ValidationResult {
				return v.ValidateRegex(ctx, input, `^[A-Za-z0-9]{4}( ?[A-Za-z0-9]{4}){5}$`, "Application Password")
			},
			IsSecret: true,
			Optional: true,
			Phase:    "WordPress",
		},
		{
			HumanLabel:     "YouTube Access Token",
			SSMCategoryKey: "platforms/youtube_access_token",
			EnvVar:         "YOUTUBE_ACCESS_TOKEN",
			ParamType:      ParamSecureString,
			Source:         SourcePrompt,
			Prompt: `Paste an OAuth access token with the youtube.upload scope
   (or press Enter to skip):`,
			ValidateFn: v.ValidateYouTubeToken,
			IsSecret:   true,
			Optional:   true,
			Phase:      "YouTube",
		},
		{
			HumanLabel:     "YouTube Channel ID",
			SSMCategoryKey: "platforms/youtube_channel_id",
			EnvVar:         "YOUTUBE_CHANNEL_ID",
			ParamType:      ParamString,
			Source:         SourcePrompt,
			Prompt:         `Paste the channel ID (UC...) (or press Enter to skip):`,
			ValidateFn: func(ctx context.Context, input string) ValidationResult {
				return v.ValidateRegex(ctx, input, `^UC[0-9A-Za-z_-]{22}$`, "YouTube Channel ID")
			},
			Optional: true,
			Phase:    "YouTube",
		},
		{
			HumanLabel:     "Meta Page Access Token",
			SSMCategoryKey: "platforms/meta_page_access_token",
			EnvVar:         "META_PAGE_ACCESS_TOKEN",
			ParamType:      ParamSecureString,
			Source:         SourcePrompt,
			Prompt: `1. In Meta Business Suite create a long-lived Page access token.
   2. Paste it here (or press Enter to skip):`,
			ValidateFn: v.ValidateMetaToken,
			IsSecret:   true,
			Optional:   true,
			Phase:      "Meta",
		},
		{
			HumanLabel:     "Facebook Page ID",
			SSMCategoryKey: "platforms/meta_page_id",
			EnvVar:         "META_PAGE_ID",
			ParamType:      ParamString,
			Source:         SourcePrompt,
			Prompt:         `Paste the numeric Facebook Page ID (or press Enter to skip):`,
			ValidateFn: func(ctx context.Context, input string) ValidationResult {
				return v.ValidateRegex(ctx, input, `^[0-9]{5,20}$`, "Facebook Page ID")
			},
			Optional: true,
			Phase:    "Meta",
		},
		{
			HumanLabel:     "Instagram Business Account ID",
			SSMCategoryKey: "platforms/instagram_account_id",
			EnvVar:         "INSTAGRAM_ACCOUNT_ID",
			ParamType:      ParamString,
			Source:         SourcePrompt,
			Prompt:         `Paste the numeric Instagram Business Account ID (or press Enter to skip):`,
			ValidateFn: func(ctx context.Context, input string) ValidationResult {
				return v.ValidateRegex(ctx, input, `^[0-9]{5,20}$`, "Instagram Account ID")
			},
			Optional: true,
			Phase:    "Meta",
		},
		{
			HumanLabel:     "Meta Graph API Version",
			SSMCategoryKey: "platforms/meta_graph_version",
			EnvVar:         "META_GRAPH_VERSION",
			ParamType:      ParamString,
			Source:         SourceFixed,
			FixedValue:     defaultGraphVersion,
			Phase:          "Meta",
		},
		{
			HumanLabel:     "Analytics Database URL",
			SSMCategoryKey: "database/url",
			EnvVar:         "DATABASE_URL",
			ParamType:      ParamSecureString,
			Source:         SourcePrompt,
			Prompt: `Paste the postgres:// URL of the analytics warehouse holding
   historical engagement (or press Enter to use default scoring):`,
			ValidateFn: v.ValidateDatabaseURL,
			IsSecret:   true,
			Optional:   true,
			Phase:      "Analytics",
		},
	}
}

// BootstrapRunner walks the inventory, prompting and writing to SSM.
type BootstrapRunner struct {
	SSM       *SSMManager
	Validator *Validator
	Stdin     io.Reader
	Stderr    io.Writer

	// SkipOptional skips every optional step without prompting.
	SkipOptional bool

	// One scanner for the whole session so buffered input is not lost.
	scanner *bufio.Scanner

	inventoryOverride []BootstrapStep
}

// NewBootstrapRunner returns a runner wired to stdin and the real APIs.
func NewBootstrapRunner(bctx *BootstrapContext) *BootstrapRunner {
	return &BootstrapRunner{
		SSM:       NewSSMManager(bctx),
		Validator: NewValidator(),
		Stdin:     os.Stdin,
		Stderr:    os.Stderr,
	}
}

func (r *BootstrapRunner) inventory() []BootstrapStep {
	if r.inventoryOverride != nil {
		return r.inventoryOverride
	}
	return BuildInventory(r.Validator)
}

// stepResult records what happened to one step.
type stepResult struct {
	Label  string
	Action string // written, overwritten, skipped
	Path   string
}

// Run processes every step and prints a summary.
func (r *BootstrapRunner) Run(ctx context.Context) error {
	inventory := r.inventory()

	var phase string
	results := make([]stepResult, 0, len(inventory))
	for i, step := range inventory {
		if step.Phase != phase {
			phase = step.Phase
			r.printPhaseHeader(phase)
		}
		fmt.Fprintf(r.Stderr, "\n[%d/%d] %s\n", i+1, len(inventory), step.HumanLabel)

		res, err := r.processStep(ctx, step)
		if err != nil {
			return fmt.Errorf("step %q failed: %w", step.HumanLabel, err)
		}
		results = append(results, res)
	}

	r.printSummary(results)
	return nil
}

func (r *BootstrapRunner) processStep(ctx context.Context, step BootstrapStep) (stepResult, error) {
	path := r.SSM.SSMPath(step.SSMCategoryKey)
	res := stepResult{Label: step.HumanLabel, Path: path}

	if step.Optional && r.SkipOptional {
		fmt.Fprintf(r.Stderr, "  Skipped (--skip-optional)\n")
		res.Action = "skipped"
		return res, nil
	}

	exists, err := r.SSM.ParameterExists(ctx, path)
	if err != nil {
		return res, err
	}
	if exists {
		fmt.Fprintf(r.Stderr, "  Parameter already exists: %s\n", path)
		choice, err := r.promptChoice("  [S]kip or [O]verwrite? ", "skip", "overwrite")
		if err != nil {
			return res, fmt.Errorf("reading skip/overwrite choice: %w", err)
		}
		if choice == "skip" {
			fmt.Fprintf(r.Stderr, "  Skipped.\n")
			res.Action = "skipped"
			return res, nil
		}
	}

	var value string
	switch step.Source {
	case SourceFixed:
		value = step.FixedValue
		fmt.Fprintf(r.Stderr, "  Using fixed value: %s\n", value)
	default:
		value, err = r.promptAndValidate(ctx, step)
		if errors.Is(err, errSkipped) {
			fmt.Fprintf(r.Stderr, "  Skipped.\n")
			res.Action = "skipped"
			return res, nil
		}
		if err != nil {
			return res, err
		}
	}

	if step.ParamType == ParamSecureString {
		err = r.SSM.PutSecret(ctx, path, value, exists)
	} else {
		err = r.SSM.PutString(ctx, path, value)
	}
	if err != nil {
		return res, err
	}

	res.Action = "written"
	if exists {
		res.Action = "overwritten"
	}
	fmt.Fprintf(r.Stderr, "  Stored: %s\n", path)
	return res, nil
}

// promptAndValidate reads a value and retries on validation failure.
// Secret values are never echoed back.
func (r *BootstrapRunner) promptAndValidate(ctx context.Context, step BootstrapStep) (string, error) {
	fmt.Fprintf(r.Stderr, "\n  %s\n\n", step.Prompt)

	for attempt := 1; attempt <= maxRetries; {
		var input string
		var err error
		if step.IsSecret {
			input, err = r.readSecretInput("  > ")
		} else {
			input, err = r.readInput("  > ")
		}
		if err != nil {
			return "", fmt.Errorf("reading input for %s: %w", step.HumanLabel, err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			if step.Optional {
				return "", errSkipped
			}
			choice, err := r.promptChoice("  No input received. [S]kip this parameter or [R]etry? ", "skip", "retry")
			if err != nil {
				return "", err
			}
			if choice == "skip" {
				return "", errSkipped
			}
			continue
		}

		if step.IsSecret {
			fmt.Fprintf(r.Stderr, "  Received %d chars.\n", len(input))
		}
		if step.ValidateFn == nil {
			return input, nil
		}

		vr := step.ValidateFn(ctx, input)
		if vr.Valid {
			fmt.Fprintf(r.Stderr, "  Validated: %s\n", vr.Message)
			return input, nil
		}
		fmt.Fprintf(r.Stderr, "  Validation failed: %s\n", vr.Message)
		if attempt < maxRetries {
			fmt.Fprintf(r.Stderr, "  Try again (%d/%d).\n", attempt, maxRetries)
		}
		attempt++
	}

	return "", fmt.Errorf("maximum retries (%d) exceeded for %s", maxRetries, step.HumanLabel)
}

func (r *BootstrapRunner) scanLine() (string, error) {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.Stdin)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *BootstrapRunner) readInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)
	return r.scanLine()
}

// readSecretInput disables echo when stdin is a terminal and falls back to
// plain line reading for piped input.
func (r *BootstrapRunner) readSecretInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)

	if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret input: %w", err)
		}
		return string(secret), nil
	}
	return r.scanLine()
}

// promptChoice loops until the operator types the first letter or the full
// word of one of the two options.
func (r *BootstrapRunner) promptChoice(prompt, a, b string) (string, error) {
	for {
		fmt.Fprint(r.Stderr, prompt)
		line, err := r.scanLine()
		if err != nil {
			return "", err
		}
		switch choice := strings.ToLower(strings.TrimSpace(line)); choice {
		case a, a[:1]:
			return a, nil
		case b, b[:1]:
			return b, nil
		}
		fmt.Fprintf(r.Stderr, "  Please enter %q or %q.\n", strings.ToUpper(a[:1]), strings.ToUpper(b[:1]))
	}
}

func (r *BootstrapRunner) printPhaseHeader(phase string) {
	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Platform: %s\n", phase)
	fmt.Fprintf(r.Stderr, "============================================================\n")
}

func (r *BootstrapRunner) printSummary(results []stepResult) {
	counts := map[string]int{}
	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Bootstrap Summary\n")
	fmt.Fprintf(r.Stderr, "============================================================\n")
	for _, res := range results {
		counts[res.Action]++
		fmt.Fprintf(r.Stderr, "  %-14s %s\n", "["+strings.ToUpper(res.Action)+"]", res.Label)
	}
	fmt.Fprintf(r.Stderr, "------------------------------------------------------------\n")
	fmt.Fprintf(r.Stderr, "  Written: %d | Overwritten: %d | Skipped: %d\n",
		counts["written"], counts["overwritten"], counts["skipped"])
	fmt.Fprintf(r.Stderr, "============================================================\n\n")
}
