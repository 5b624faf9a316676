// Package lib provides a Go SDK for sessionbox servers.
//
// A sessionbox server runs commands inside isolated, time limited sessions. This
// package connects to a server and exposes its operations as Go methods.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{Address: "127.0.0.1:8765"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Create a session that is reclaimed after 10 minutes.
//	sess, err := client.CreateSession(ctx, lib.CreateSessionOpts{Timeout: 10 * time.Minute})
//
//	// Install a package and run a command.
//	client.InstallPip(ctx, sess.ID, "requests")
//	res, err := client.RunCommand(ctx, sess.ID, "python3", []string{"-c", "import requests"}, nil)
//
//	// Release the session before its timeout.
//	client.DestroySession(ctx, sess.ID)
//
// # Errors
//
// A command that exits with a non zero code is not an error, check
// [CommandResult].ExitCode. Errors can be checked with [errors.Is] against
// [ErrNotFound], [ErrNotValid] and [ErrLaunchFailed]. Launch failures carry the
// output captured before the failure, use [errors.As] with [*LaunchError].
package lib
