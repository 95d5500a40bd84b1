package main

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) error {
	usr, err := cli.usrSvc.AddUser(name, uname, email, pwd, roles)
	if err != nil {
		return err
	}
	logger.Printf("user %q saved with roles %v\n", usr.Username, usr.Roles)
	return nil
}
