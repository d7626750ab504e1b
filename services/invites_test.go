package services

import (
	"errors"
	"net/url"
	"path"
	"testing"
	"time"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/board"
	"github.com/CrowderSoup/collab-board/database"
)

func newInviteFixture(t *testing.T) (*fixture, *InviteService, *time.Time) {
	t.Helper()
	f := newFixture(t)
	invites := NewInviteService(f.store, SMTPConfig{})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	invites.now = func() time.Time { return now }
	return f, invites, &now
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil || u.Path == "" {
		t.Fatalf("invite link %q: %v", link, err)
	}
	return path.Base(u.Path)
}

func TestInviteStoresOnlyTheTokenHash(t *testing.T) {
	f, invites, _ := newInviteFixture(t)

	inv, link, err := invites.CreateInvite(f.ctx, f.owner.ID, f.board.ID, " Guest@Example.com ", board.RoleEditor, "http://board.test")
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	token := tokenFromLink(t, link)
	if inv.TokenHash == token || inv.TokenHash != hashInviteToken(token) {
		t.Errorf("stored hash %q for token %q", inv.TokenHash, token)
	}
	if inv.Email != "guest@example.com" || inv.Status != database.InvitePending {
		t.Errorf("invite = %+v", inv)
	}

	preview, err := invites.Preview(f.ctx, token)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.BoardName != "Roadmap" || preview.Role != board.RoleEditor {
		t.Errorf("preview = %+v", preview)
	}
}

func TestInviteRequiresOwner(t *testing.T) {
	f, invites, _ := newInviteFixture(t)
	editor := f.member(t, "editor@example.com", board.RoleEditor)

	_, _, err := invites.CreateInvite(f.ctx, editor.ID, f.board.ID, "x@example.com", board.RoleViewer, "http://board.test")
	if code, _ := forbiddenCode(err); code != api.CodeOwnerRequired {
		t.Errorf("editor CreateInvite err = %v", err)
	}
	if _, err := invites.Invites(f.ctx, editor.ID, f.board.ID, ""); err == nil {
		t.Error("editor listed invites")
	}
	var validation *ValidationError
	if _, err := invites.Invites(f.ctx, f.owner.ID, f.board.ID, "REVOKED"); !errors.As(err, &validation) {
		t.Errorf("bad status err = %v", err)
	}
}

func TestAcceptInvite(t *testing.T) {
	f, invites, _ := newInviteFixture(t)
	_, link, err := invites.CreateInvite(f.ctx, f.owner.ID, f.board.ID, "guest@example.com", board.RoleViewer, "http://board.test")
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	token := tokenFromLink(t, link)

	stranger, _ := f.store.EnsureUser(f.ctx, "stranger@example.com")
	if _, err := invites.Accept(f.ctx, stranger.ID, token); err == nil {
		t.Fatal("stranger accepted someone else's invite")
	} else if code, _ := forbiddenCode(err); code != api.CodeInviteEmailMismatch {
		t.Errorf("stranger err = %v", err)
	}

	guest, _ := f.store.EnsureUser(f.ctx, "guest@example.com")
	inv, err := invites.Accept(f.ctx, guest.ID, token)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if inv.Status != database.InviteAccepted || inv.AcceptedBy == nil || *inv.AcceptedBy != guest.ID {
		t.Errorf("accepted invite = %+v", inv)
	}
	if role, err := f.svc.Role(f.ctx, guest.ID, f.board.ID); err != nil || role != board.RoleViewer {
		t.Errorf("guest role = %q, %v", role, err)
	}

	var notFound *NotFoundError
	if _, err := invites.Accept(f.ctx, guest.ID, token); !errors.As(err, &notFound) || notFound.Code != api.CodeInviteNotFound {
		t.Errorf("second Accept err = %v", err)
	}
}

func TestExpiredInvite(t *testing.T) {
	f, invites, now := newInviteFixture(t)
	first, link, err := invites.CreateInvite(f.ctx, f.owner.ID, f.board.ID, "late@example.com", board.RoleEditor, "http://board.test")
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	token := tokenFromLink(t, link)
	late, _ := f.store.EnsureUser(f.ctx, "late@example.com")

	*now = now.Add(inviteTTL + time.Minute)

	var expired *InviteExpiredError
	if _, err := invites.Accept(f.ctx, late.ID, token); !errors.As(err, &expired) {
		t.Fatalf("Accept err = %v, want expired", err)
	}
	if ok, _ := f.store.IsMember(f.ctx, f.board.ID, late.ID); ok {
		t.Error("expired invite granted access")
	}
	gone, err := invites.Invites(f.ctx, f.owner.ID, f.board.ID, database.InviteExpired)
	if err != nil || len(gone) != 1 || gone[0].ID != first.ID {
		t.Fatalf("expired invites = %+v, %v", gone, err)
	}

	second, link, err := invites.CreateInvite(f.ctx, f.owner.ID, f.board.ID, "late@example.com", board.RoleEditor, "http://board.test")
	if err != nil || second.ID == first.ID || link == "" {
		t.Fatalf("reissue = %+v %q, %v", second, link, err)
	}
	if _, err := invites.Accept(f.ctx, late.ID, tokenFromLink(t, link)); err != nil {
		t.Errorf("Accept reissued invite: %v", err)
	}
}
