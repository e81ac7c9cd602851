package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/corvandale/leadctl/internal/api"
	"github.com/corvandale/leadctl/internal/auth"
	"github.com/corvandale/leadctl/internal/export"
	"github.com/corvandale/leadctl/internal/leads"
	"github.com/corvandale/leadctl/internal/model"
)

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted if omitted)")
	fs.Parse(args)

	if *email == "" {
		return errors.New("-email is required")
	}
	if *password == "" {
		var err error
		*password, err = promptLine("Password: ")
		if err != nil {
			return err
		}
	}

	if err := a.auth.Login(ctx, *email, *password); err != nil {
		return err
	}
	user := a.auth.CurrentUser()
	fmt.Printf("Logged in as %s <%s>\n", user.FullName(), user.Email)
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (prompted if omitted)")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	fs.Parse(args)

	if *username == "" || *email == "" {
		return errors.New("-username and -email are required")
	}
	if *password == "" {
		var err error
		*password, err = promptLine("Password: ")
		if err != nil {
			return err
		}
		confirm, err := promptLine("Confirm password: ")
		if err != nil {
			return err
		}
		if confirm != *password {
			return errors.New("passwords do not match")
		}
	}

	err := a.auth.Register(ctx, api.RegisterInput{
		Username:        *username,
		Email:           *email,
		Password:        *password,
		PasswordConfirm: *password,
		FirstName:       *first,
		LastName:        *last,
	})
	if err != nil {
		return err
	}
	user := a.auth.CurrentUser()
	fmt.Printf("Registered and logged in as %s\n", user.Username)
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	user := a.auth.CurrentUser()
	if user == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	fmt.Printf("%s <%s>\n", user.FullName(), user.Email)
	fmt.Printf("Username:  %s\n", user.Username)
	if user.DateJoined != "" {
		fmt.Printf("Joined:    %s\n", user.DateJoined)
	}

	if sess, err := a.sessionForDisplay(ctx); err == nil && sess != nil {
		if exp, ok := api.TokenExpiry(sess.AccessToken); ok {
			state := "valid"
			if exp.Before(time.Now()) {
				state = "expired, will refresh on next request"
			}
			fmt.Printf("Token:     %s (expires %s)\n", state, exp.Format(time.RFC3339))
		}
	}
	return nil
}

// sessionForDisplay reloads the stored session for the whoami output.
func (a *app) sessionForDisplay(ctx context.Context) (*model.Session, error) {
	if a.auth.State() != auth.StateAuthenticated {
		return nil, nil
	}
	return a.sessions.Load(ctx)
}

func (a *app) cmdVerify(ctx context.Context) error {
	if a.auth.CurrentUser() == nil {
		return errors.New("not logged in")
	}
	if err := a.auth.Verify(ctx); err != nil {
		return err
	}
	fmt.Println("Token is valid.")
	return nil
}

func (a *app) cmdBoard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("board", flag.ExitOnError)
	search := fs.String("search", "", "search term (name, email, or phone)")
	source := fs.String("source", "all", "lead source filter")
	sortBy := fs.String("sort", "created_at", "sort field: name|email|lead_source|created_at|updated_at")
	order := fs.String("order", "desc", "sort order: asc|desc")
	fs.Parse(args)

	if err := a.board.Load(ctx); err != nil {
		return err
	}

	view := leads.FilterBoard(a.board.Snapshot(), leads.FilterOptions{
		Search: *search,
		Source: model.LeadSource(*source),
	})
	view = leads.SortBoard(view, leads.SortField(*sortBy), leads.SortOrder(*order))

	renderBoard(os.Stdout, view)
	renderStatistics(os.Stdout, a.board.Statistics())
	return nil
}

func (a *app) cmdLeads(ctx context.Context) error {
	list, err := a.client.Leads(ctx)
	if err != nil {
		return err
	}
	renderLeadTable(os.Stdout, list)
	return nil
}

func (a *app) cmdCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "lead name")
	email := fs.String("email", "", "lead email")
	phone := fs.String("phone", "", "lead phone")
	source := fs.String("source", "", "lead source")
	notes := fs.String("notes", "", "notes")
	fs.Parse(args)

	if *name == "" || *email == "" || *phone == "" || *source == "" {
		return errors.New("-name, -email, -phone and -source are required")
	}
	src := model.LeadSource(*source)
	if !src.Valid() {
		return fmt.Errorf("unknown source %q (see help for the list)", *source)
	}

	if err := a.board.Load(ctx); err != nil {
		return err
	}
	lead, err := a.board.Create(ctx, model.CreateLead{
		Name: *name, Email: *email, Phone: *phone, LeadSource: src, Notes: *notes,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created lead %d: %s (%s)\n", lead.ID, lead.Name, lead.Status.Display())
	return nil
}

func (a *app) cmdMove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	id := fs.Int64("id", 0, "lead id")
	status := fs.String("status", "", "target status")
	fs.Parse(args)

	if *id == 0 || *status == "" {
		return errors.New("-id and -status are required")
	}

	if err := a.board.Load(ctx); err != nil {
		return err
	}
	lead, err := a.board.ChangeStatus(ctx, *id, model.LeadStatus(*status))
	if err != nil {
		return err
	}
	fmt.Printf("Moved lead %d to %s\n", lead.ID, lead.Status.Display())
	renderStatistics(os.Stdout, a.board.Statistics())
	return nil
}

func (a *app) cmdEdit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	id := fs.Int64("id", 0, "lead id")
	name := fs.String("name", "", "new name")
	email := fs.String("email", "", "new email")
	phone := fs.String("phone", "", "new phone")
	source := fs.String("source", "", "new source")
	notes := fs.String("notes", "", "new notes")
	fs.Parse(args)

	if *id == 0 {
		return errors.New("-id is required")
	}

	var update model.UpdateLead
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			update.Name = name
		case "email":
			update.Email = email
		case "phone":
			update.Phone = phone
		case "source":
			src := model.LeadSource(*source)
			update.LeadSource = &src
		case "notes":
			update.Notes = notes
		}
	})
	if update == (model.UpdateLead{}) {
		return errors.New("nothing to change")
	}

	if err := a.board.Load(ctx); err != nil {
		return err
	}
	lead, err := a.board.Update(ctx, *id, update)
	if err != nil {
		return err
	}
	fmt.Printf("Updated lead %d: %s\n", lead.ID, lead.Name)
	return nil
}

func (a *app) cmdDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "lead id")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	fs.Parse(args)

	if *id == 0 {
		return errors.New("-id is required")
	}

	if err := a.board.Load(ctx); err != nil {
		return err
	}

	confirm := func(lead model.Lead) bool {
		if *yes {
			return true
		}
		answer, err := promptLine(fmt.Sprintf("Delete lead %d (%s)? [y/N] ", lead.ID, lead.Name))
		if err != nil {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}

	deleted, err := a.board.Delete(ctx, *id, confirm)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Println("Canceled.")
		return nil
	}
	fmt.Printf("Deleted lead %d.\n", *id)
	return nil
}

func (a *app) cmdStats(ctx context.Context) error {
	stats, err := a.client.LeadStatistics(ctx)
	if err != nil {
		return err
	}
	renderStatistics(os.Stdout, stats)
	return nil
}

func (a *app) cmdSeed(ctx context.Context) error {
	if err := a.board.Load(ctx); err != nil {
		return err
	}
	n, err := a.board.Seed(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Created %d demo leads.\n", n)
	return nil
}

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	user := a.auth.CurrentUser()
	if user == nil {
		return errors.New("not logged in")
	}

	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	first := fs.String("first", user.FirstName, "first name")
	last := fs.String("last", user.LastName, "last name")
	email := fs.String("email", user.Email, "email")
	username := fs.String("username", user.Username, "username")
	fs.Parse(args)

	if fs.NFlag() == 0 {
		fmt.Printf("%s <%s> (username %s)\n", user.FullName(), user.Email, user.Username)
		return nil
	}

	updated, err := a.auth.UpdateProfile(ctx, api.ProfileUpdate{
		FirstName: *first,
		LastName:  *last,
		Email:     *email,
		Username:  *username,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Profile updated: %s <%s>\n", updated.FullName(), updated.Email)
	return nil
}

func (a *app) cmdPasswd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	oldPw := fs.String("old", "", "current password (prompted if omitted)")
	newPw := fs.String("new", "", "new password (prompted if omitted)")
	fs.Parse(args)

	var err error
	if *oldPw == "" {
		if *oldPw, err = promptLine("Current password: "); err != nil {
			return err
		}
	}
	if *newPw == "" {
		if *newPw, err = promptLine("New password: "); err != nil {
			return err
		}
	}

	if err := a.auth.ChangePassword(ctx, *oldPw, *newPw); err != nil {
		return err
	}
	fmt.Println("Password changed.")
	return nil
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "output file")
	passphrase := fs.String("passphrase", "", "encryption passphrase (prompted if omitted)")
	fs.Parse(args)

	if *out == "" {
		return errors.New("-out is required")
	}
	if *passphrase == "" {
		var err error
		if *passphrase, err = promptLine("Export passphrase: "); err != nil {
			return err
		}
	}

	if err := a.board.Load(ctx); err != nil {
		return err
	}

	snap := export.Snapshot{
		ExportedAt: time.Now().UTC(),
		Leads:      a.board.Snapshot(),
		Statistics: a.board.Statistics(),
	}
	if user := a.auth.CurrentUser(); user != nil {
		snap.ExportedBy = user.Username
	}

	if err := export.Write(*out, *passphrase, snap); err != nil {
		return err
	}
	fmt.Printf("Exported %d leads to %s\n", len(snap.AllLeads()), *out)
	return nil
}

// cmdImport replays an exported snapshot through the create endpoint.
// The server assigns fresh ids; this is a data import, not a cache restore.
func (a *app) cmdImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("in", "", "input file")
	passphrase := fs.String("passphrase", "", "decryption passphrase (prompted if omitted)")
	fs.Parse(args)

	if *in == "" {
		return errors.New("-in is required")
	}
	if *passphrase == "" {
		var err error
		if *passphrase, err = promptLine("Import passphrase: "); err != nil {
			return err
		}
	}

	snap, err := export.Read(*in, *passphrase)
	if err != nil {
		return err
	}

	if err := a.board.Load(ctx); err != nil {
		return err
	}

	created := 0
	for _, lead := range snap.AllLeads() {
		_, err := a.board.Create(ctx, model.CreateLead{
			Name:       lead.Name,
			Email:      lead.Email,
			Phone:      lead.Phone,
			LeadSource: lead.LeadSource,
			Notes:      lead.Notes,
		})
		if err != nil {
			return fmt.Errorf("after %d leads: %w", created, err)
		}
		created++
	}
	fmt.Printf("Imported %d leads from %s\n", created, *in)
	return nil
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
