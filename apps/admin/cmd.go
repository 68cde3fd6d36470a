package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	"github.com/volatiletech/null/v8"
	"golang.org/x/term"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/analytics"
	"github.com/ramesh-perabattula/EduPay/core/assignment"
	"github.com/ramesh-perabattula/EduPay/core/ledger"
	"github.com/ramesh-perabattula/EduPay/core/promotion"
)

var (
	isTerminalFunc = term.IsTerminal // mockable
	readLineFunc   = readLine        // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	db           *sql.DB
	assignSvc    *assignment.Service
	promotionSvc *promotion.Service
	analyticsSvc *analytics.Service
	mailSvc      core.EmailService
	out          io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  assign -fee TYPE -year N -amount A [-semester S] - assign a fee to a government quota cohort")
	fmt.Fprintln(cli.out, "  promote -year N [-yes] - promote the eligible students of a year")
	fmt.Fprintln(cli.out, "  report -year Y -department D -out FILE.xlsx [-email ADDRESS] - export the dues analytics")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	assignCmd := cli.newFlagSet("assign")
	assignFee := assignCmd.String("fee", "", "The fee type: "+strings.Join(feeTypes(), ", "))
	assignYear := assignCmd.Int("year", 0, "The cohort's current year (1-4)")
	assignAmount := assignCmd.Int64("amount", 0, "The amount due by each student")
	assignSemester := assignCmd.Int("semester", 0, "The semester the fee is for (optional)")

	promoteCmd := cli.newFlagSet("promote")
	promoteYear := promoteCmd.Int("year", 0, "The cohort's current year (1-4)")
	promoteYes := promoteCmd.Bool("yes", false, "Do not ask for confirmation")

	reportCmd := cli.newFlagSet("report")
	reportYear := reportCmd.String("year", analytics.All, "The year (1-4) or all")
	reportDept := reportCmd.String("department", analytics.All, "The department or all")
	reportOut := reportCmd.String("out", "", "The xlsx file to write")
	reportEmail := reportCmd.String("email", "", "Also email the report to this address")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "assign":
		if err := assignCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *assignFee == "" || *assignYear == 0 || *assignAmount == 0 {
			assignCmd.Usage()
			return errHelp
		}
		var semester null.Int
		if *assignSemester != 0 {
			semester = null.IntFrom(*assignSemester)
		}
		return cli.assign(ctx, ledger.FeeType(*assignFee), *assignYear, *assignAmount, semester)

	case "promote":
		if err := promoteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *promoteYear == 0 {
			promoteCmd.Usage()
			return errHelp
		}
		return cli.promote(ctx, *promoteYear, *promoteYes)

	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *reportOut == "" {
			reportCmd.Usage()
			return errHelp
		}
		return cli.report(ctx, *reportYear, *reportDept, *reportOut, *reportEmail)

	default:
		cli.printUsage()
		return errHelp
	}
}

func feeTypes() []string {
	types := make([]string, len(ledger.FeeTypes))
	for i, ft := range ledger.FeeTypes {
		types[i] = string(ft)
	}
	return types
}

func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirm asks for a yes/no answer on a terminal. Without a terminal, the action must be confirmed with -yes.
func (cli *commandLine) confirm(question string) error {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return errors.New("confirmation required: run with -yes")
	}
	fmt.Fprintf(cli.out, "%s [y/N]: ", question)
	answer, err := readLineFunc()
	if err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return nil
	}
	return errAborted
}

func (cli *commandLine) assign(ctx context.Context, ft ledger.FeeType, year int, amount int64, semester null.Int) error {
	res, err := cli.assignSvc.Assign(ctx, assignment.AssignFee{
		FeeType:  ft,
		Amount:   amount,
		Semester: semester,
		Selector: assignment.Selector{Year: year},
	})
	if err != nil {
		return err
	}

	c := res.Cohort
	fmt.Fprintf(cli.out, "%s fee of %d for year %d: %d/%d assigned\n", c.FeeType, c.Amount, c.Year, c.Assigned, c.CohortSize)
	for _, s := range c.Skipped {
		fmt.Fprintf(cli.out, "  skipped %s: %s\n", s.USN, s.Reason)
	}
	for _, f := range c.Failed {
		fmt.Fprintf(cli.out, "  failed %s: %s\n", f.USN, f.Error)
	}
	return nil
}

func (cli *commandLine) promote(ctx context.Context, year int, yes bool) error {
	cohort, err := cli.promotionSvc.ListCohort(ctx, year)
	if err != nil {
		return err
	}
	var eligible int
	for _, s := range cohort {
		if promotion.Eligible(s) {
			eligible++
		}
	}
	fmt.Fprintf(cli.out, "year %d: %d students, %d eligible\n", year, len(cohort), eligible)

	if !yes {
		verb := "Promote"
		if year == ledger.FinalYear {
			verb = "Graduate"
		}
		if err := cli.confirm(fmt.Sprintf("%s %d students?", verb, eligible)); err != nil {
			return err
		}
	}

	res, err := cli.promotionSvc.PromoteCohort(ctx, year)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "promoted: %d, graduated: %d, skipped: %d, failed: %d\n",
		res.Promoted, res.Graduated, len(res.Skipped), len(res.Failed))
	for _, s := range res.Skipped {
		fmt.Fprintf(cli.out, "  skipped %s: %s (%d due)\n", s.USN, s.Reason, s.TotalDue)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(cli.out, "  failed %s: %s\n", f.USN, f.Error)
	}
	return nil
}

func (cli *commandLine) report(ctx context.Context, year, dept, out, email string) error {
	var to *mail.Address
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return core.NewFieldError("email", "invalid email address")
		}
		to = addr
	}

	f, err := analytics.ParseFilter(year, dept)
	if err != nil {
		return err
	}
	rep, err := cli.analyticsSvc.Analyze(ctx, f)
	if err != nil {
		return err
	}

	file, err := os.Create(out)
	if err != nil {
		return err
	}
	if err = analytics.Export(rep, file); err != nil {
		_ = file.Close()
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d students, %d pending, %d due: written to %s\n",
		rep.Totals.TotalStudents, rep.Totals.Pending, rep.Totals.TotalOverallDue, out)

	if to != nil {
		return cli.mailReport(rep, out, *to)
	}
	return nil
}

func (cli *commandLine) mailReport(rep analytics.Report, path string, to mail.Address) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	msg := &core.EmailMessage{
		To:      []mail.Address{to},
		Subject: "Dues report",
		BodyStr: fmt.Sprintf("%d students, %d with pending dues, %d outstanding in total.",
			rep.Totals.TotalStudents, rep.Totals.Pending, rep.Totals.TotalOverallDue),
	}
	if err = msg.Attach(file, "dues-report.xlsx", analytics.ContentType); err != nil {
		return err
	}
	cli.mailSvc.SendMessages(msg)
	return nil
}
