package main

import (
	"encoding/json"
	"fmt"

	"github.com/davbridge/davbridge"
)

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(b))
}

// printStatus renders a human-oriented status summary.
func printStatus(st davbridge.StatusResponse) {
	if st.Server.Running {
		fmt.Print("server:  running")
		if st.Server.PID != nil {
			fmt.Printf(" (pid %d)", *st.Server.PID)
		}
		if st.Server.URL != nil {
			fmt.Printf(" at %s", *st.Server.URL)
		}
		fmt.Println()
	} else {
		fmt.Println("server:  stopped")
	}

	if st.Auth.LoggedIn {
		user := ""
		if st.Auth.Username != nil {
			user = " as " + *st.Auth.Username
		}
		fmt.Printf("auth:    logged in%s\n", user)
	} else {
		fmt.Println("auth:    logged out")
	}

	fmt.Printf("webdav:  %s:%d\n", st.Config.Webdav.Host, st.Config.Webdav.Port)
	if st.LogFile != "" {
		fmt.Printf("logfile: %s\n", st.LogFile)
	}
}
