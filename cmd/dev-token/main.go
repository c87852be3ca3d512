package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/service"
)

func main() {
	var (
		userID int
		admin  bool
	)
	flag.IntVar(&userID, "user", 1, "Student or proctor id to embed")
	flag.BoolVar(&admin, "admin", false, "Issue a proctor token instead of a student token")
	flag.Parse()

	if userID < 1 {
		fmt.Fprintln(os.Stderr, "Error: -user must be a positive id")
		os.Exit(2)
	}

	cfg := config.Load()
	auth := service.NewAuthService(cfg)

	var (
		token string
		err   error
	)
	if admin {
		token, err = auth.GenerateAdminToken(userID)
	} else {
		token, err = auth.GenerateStudentToken(userID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
