package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/analytics"
	"github.com/ramesh-perabattula/EduPay/core/assignment"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
	"github.com/ramesh-perabattula/EduPay/core/promotion"
	emailsvc "github.com/ramesh-perabattula/EduPay/services/email"
	inmemdb "github.com/ramesh-perabattula/EduPay/storage/database/inmem"
	"github.com/ramesh-perabattula/EduPay/testutil"
)

type testCLI struct {
	*commandLine
	repo    ledger.Repository
	mailSvc *emailsvc.ConsoleServiceMock
	out     *bytes.Buffer
}

func setup(t *testing.T) testCLI {
	conf := &core.Config{AppName: "EduPay", FromEmailAddress: "noreply@edupay.test", Ledger: core.LedgerConfig{CohortWorkers: 2}}
	logger := testutil.NewLogger(t)

	// set up DB & repos
	repo := inmemdb.NewLedgerRepository(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	out := new(bytes.Buffer)

	// start CLI
	return testCLI{
		commandLine: &commandLine{
			assignSvc:    assignment.NewService(repo, conf, logger),
			promotionSvc: promotion.NewService(repo, conf, logger),
			analyticsSvc: analytics.NewService(repo),
			mailSvc:      mailSvc,
			out:          out,
		},
		repo:    repo,
		mailSvc: mailSvc,
		out:     out,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantValErr bool
	wantOut    string
}

func runCLITests(t *testing.T, cli testCLI, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			cli.out.Reset()
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantValErr:
				assert.True(t, core.IsValidationError(err), "error = %v", err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, cli.out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_run(t *testing.T) {
	cli := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: "Usage:"},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"assign", "-lol"}, wantErrStr: "flag provided but not defined: -lol"},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "scholarships", "sql"}},
	})
}

func Test_commandLine_assign(t *testing.T) {
	cli := setup(t)

	testutil.CreateStudent(t, cli.repo, testutil.NewStudent("1CS22001", "CSE", 2, ledger.Government))
	testutil.CreateStudent(t, cli.repo, testutil.NewStudent("1CS22002", "CSE", 2, ledger.Government))
	testutil.CreateStudent(t, cli.repo, testutil.NewStudent("1CS22003", "CSE", 2, ledger.Management))

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"assign"}, wantErr: errHelp},
		{name: "no amount", args: []string{"assign", "-fee", "college", "-year", "2"}, wantErr: errHelp},
		{
			name:       "invalid fee",
			args:       []string{"assign", "-fee", "library", "-year", "2", "-amount", "100"},
			wantValErr: true,
		},
		{
			name:    "college",
			args:    []string{"assign", "-fee", "college", "-year", "2", "-amount", "45000", "-semester", "3"},
			wantOut: "college fee of 45000 for year 2: 2/3 assigned\n  skipped 1CS22003: " + assignment.ReasonQuota,
		},
		{
			name:    "college again",
			args:    []string{"assign", "-fee", "college", "-year", "2", "-amount", "45000", "-semester", "3"},
			wantOut: "0/3 assigned",
		},
	})

	assert.Equal(t, int64(45000), testutil.GetStudent(t, cli.repo, "1CS22001").Dues.College)
	assert.Len(t, testutil.FeeRecords(t, cli.repo, "1CS22001"), 1)
}

func Test_commandLine_promote(t *testing.T) {
	cli := setup(t)

	testutil.CreateStudent(t, cli.repo, testutil.NewStudent("1CS20001", "CSE", 4, ledger.Government),
		testutil.Record(ledger.College, 4, 1000, 1000),
	)
	testutil.CreateStudent(t, cli.repo, testutil.NewStudent("1CS20002", "CSE", 4, ledger.Government),
		testutil.Record(ledger.College, 4, 1000, 0),
	)
	testutil.CreateStudent(t, cli.repo, testutil.NewStudent("1CS23001", "CSE", 1, ledger.Government))

	var terminal bool
	var answer string
	isTerminalFunc = func(fd int) bool { return terminal }
	readLineFunc = func() (string, error) { return answer, nil }

	t.Run("no year", func(t *testing.T) {
		assert.Equal(t, errHelp, cli.run([]string{"admin", "promote"}))
	})

	t.Run("no terminal", func(t *testing.T) {
		terminal = false
		err := cli.run([]string{"admin", "promote", "-year", "4"})
		if assert.Error(t, err) {
			assert.Equal(t, "confirmation required: run with -yes", err.Error())
		}
	})

	t.Run("declined", func(t *testing.T) {
		terminal, answer = true, "n"
		cli.out.Reset()
		assert.Equal(t, errAborted, cli.run([]string{"admin", "promote", "-year", "4"}))
		assert.Contains(t, cli.out.String(), "Graduate 1 students? [y/N]")
		assert.Equal(t, ledger.Active, testutil.GetStudent(t, cli.repo, "1CS20001").Status)
	})

	t.Run("confirmed", func(t *testing.T) {
		terminal, answer = true, "y"
		cli.out.Reset()
		require.NoError(t, cli.run([]string{"admin", "promote", "-year", "4"}))
		assert.Contains(t, cli.out.String(), "promoted: 0, graduated: 1, skipped: 1, failed: 0")
		assert.Contains(t, cli.out.String(), "skipped 1CS20002: "+promotion.ReasonDues+" (1000 due)")

		graduated := testutil.GetStudent(t, cli.repo, "1CS20001")
		assert.Equal(t, ledger.Graduated, graduated.Status)
		assert.True(t, graduated.GraduatedAt.Valid)
	})

	t.Run("without confirmation", func(t *testing.T) {
		terminal = false
		require.NoError(t, cli.run([]string{"admin", "promote", "-year", "1", "-yes"}))
		assert.Equal(t, 2, testutil.GetStudent(t, cli.repo, "1CS23001").CurrentYear)
	})

	t.Run("invalid year", func(t *testing.T) {
		assert.True(t, core.IsValidationError(cli.run([]string{"admin", "promote", "-year", "5", "-yes"})))
	})
}

func Test_commandLine_report(t *testing.T) {
	cli := setup(t)

	testutil.CreateStudent(t, cli.repo, testutil.NewStudent("1EC21001", "ECE", 2, ledger.Government),
		testutil.Record(ledger.College, 2, 50000, 20000),
	)
	testutil.CreateStudent(t, cli.repo, testutil.NewStudent("1EC22001", "ECE", 1, ledger.Government),
		testutil.Record(ledger.College, 1, 50000, 50000),
	)
	dir := t.TempDir()
	out := filepath.Join(dir, "ece.xlsx")

	runCLITests(t, cli, []cliTest{
		{name: "no output", args: []string{"report"}, wantErr: errHelp},
		{
			name:       "invalid year",
			args:       []string{"report", "-year", "first", "-out", out},
			wantErrStr: "year must be all or between 1 and 4",
		},
		{
			name:       "invalid email",
			args:       []string{"report", "-out", out, "-email", "nope"},
			wantErrStr: "invalid email address",
		},
		{
			name:    "department",
			args:    []string{"report", "-department", "ECE", "-out", out, "-email", "Principal <principal@college.test>"},
			wantOut: "2 students, 1 pending, 30000 due: written to " + out,
		},
	})

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(analytics.SummarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 6) // header, 4 years, total
	assert.Equal(t, []string{"Year 2", "1", "0", "1", "30000"}, rows[2])

	sent := cli.mailSvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "principal@college.test", sent[0].To[0].Address)
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, "dues-report.xlsx", sent[0].Attachments[0].Filename)
}
