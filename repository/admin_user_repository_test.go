package repository

import (
	"testing"

	"github.com/koas-web/koasbackend/models"
)

func TestAdminUserRoundTrip(t *testing.T) {
	repo := NewGormAdminUserRepository(openTestDB(t))

	user := &models.AdminUser{Username: "KOASADMIN"}
	if err := user.SetPassword("Koas.123!"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if err := repo.Create(user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByUsername("KOASADMIN")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if !got.CheckPassword("Koas.123!") {
		t.Error("stored hash should verify the original password")
	}
	if got.CheckPassword("wrong") {
		t.Error("stored hash should reject a wrong password")
	}
}

func TestGetByUsernameUnknown(t *testing.T) {
	repo := NewGormAdminUserRepository(openTestDB(t))

	if _, err := repo.GetByUsername("nobody"); err == nil {
		t.Error("expected an error for an unknown username")
	}
}

func TestUpdatePassword(t *testing.T) {
	repo := NewGormAdminUserRepository(openTestDB(t))

	user := &models.AdminUser{Username: "KOASADMIN"}
	if err := user.SetPassword("old-password"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if err := repo.Create(user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	replacement := &models.AdminUser{}
	if err := replacement.SetPassword("new-password"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if err := repo.UpdatePassword("KOASADMIN", replacement.PasswordHash); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	got, err := repo.GetByUsername("KOASADMIN")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if got.CheckPassword("old-password") {
		t.Error("old password should no longer verify")
	}
	if !got.CheckPassword("new-password") {
		t.Error("new password should verify")
	}
}
