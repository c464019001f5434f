package main

import (
	"context"

	"github.com/trezcool/usajili/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	st, err := cli.studentSvc.GetByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err = cli.studentSvc.ResetPassword(ctx, st.ID, pwd); err != nil {
		return err
	}
	cli.printf("password reset for %s <%s>\n", st.Name, st.Email)
	return nil
}
