package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/render"
	"github.com/pithecene-io/ferry/cli/tui"
	"github.com/pithecene-io/ferry/query"
	"github.com/pithecene-io/ferry/room"
	"github.com/pithecene-io/ferry/types"
)

// rowWarningThreshold is the number of rows above which query warns about output size.
const rowWarningThreshold = 1000

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show login state and the logged-in account",
		Flags:  readFlags(),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	view, err := buildStatus(c, s)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatus, view)
	}
	return r.Render(view)
}

func buildStatus(c *cli.Context, s *session) (*tui.StatusView, error) {
	ctx := c.Context
	view := &tui.StatusView{Endpoint: s.cfg.TransportConfig().CommandAddr()}

	loggedIn, err := s.engine.IsLogin(ctx)
	if err != nil {
		return nil, err
	}
	view.LoggedIn = loggedIn
	if !loggedIn {
		return view, nil
	}

	info, err := s.engine.UserInfo(ctx)
	if err != nil {
		return nil, err
	}
	view.Wxid, view.Name, view.Mobile, view.Home = info.Wxid, info.Name, info.Mobile, info.Home

	contacts, err := s.engine.Contacts(ctx)
	if err != nil {
		return nil, err
	}
	view.Contacts = len(contacts)

	dbs, err := s.query.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	view.DBs = len(dbs)
	return view, nil
}

// ContactsCommand returns the contacts command.
func ContactsCommand() *cli.Command {
	return &cli.Command{
		Name:  "contacts",
		Usage: "List contacts",
		Flags: readFlags(
			&cli.StringFlag{
				Name:  "search",
				Usage: "Only contacts whose wxid, name or remark contains this text",
			},
		),
		Action: contactsAction,
	}
}

func contactsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := rejectTUI(c); err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	contacts, err := s.engine.Contacts(c.Context)
	if err != nil {
		return err
	}
	return r.Render(filterContacts(contacts, c.String("search")))
}

func filterContacts(contacts []types.Contact, search string) []types.Contact {
	if search == "" {
		return contacts
	}
	out := make([]types.Contact, 0, len(contacts))
	for _, ct := range contacts {
		if containsFold(ct.Wxid, search) || containsFold(ct.Name, search) || containsFold(ct.Remark, search) {
			out = append(out, ct)
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// DBsCommand returns the dbs command.
func DBsCommand() *cli.Command {
	return &cli.Command{
		Name:   "dbs",
		Usage:  "List the engine's databases",
		Flags:  readFlags(),
		Action: dbsAction,
	}
}

func dbsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := rejectTUI(c); err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	dbs, err := s.query.ListDatabases(c.Context)
	if err != nil {
		return err
	}
	return r.Render(dbs)
}

// TablesCommand returns the tables command.
func TablesCommand() *cli.Command {
	return &cli.Command{
		Name:      "tables",
		Usage:     "List the tables of a database",
		ArgsUsage: "<db>",
		Flags:     readFlags(),
		Action:    tablesAction,
	}
}

func tablesAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := rejectTUI(c); err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("usage: ferry tables <db>", exitFailure)
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	tables, err := s.query.ListTables(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	return r.Render(tables)
}

// QueryCommand returns the query command.
func QueryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Run a SQL statement against a database",
		ArgsUsage: "<db> <sql> [args...]",
		Description: "Each ? placeholder in <sql> is bound to the next argument. " +
			"Arguments that parse as integers bind as integers, the rest as strings.",
		Flags:  readFlags(),
		Action: queryAction,
	}
}

func queryAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := rejectTUI(c); err != nil {
		return err
	}
	if c.NArg() < 2 {
		return cli.Exit("usage: ferry query <db> <sql> [args...]", exitFailure)
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	argv := c.Args().Slice()
	rows, err := s.query.ExecuteArgs(c.Context, argv[0], argv[1], parseArgs(argv[2:])...)
	if err != nil {
		return err
	}

	if len(rows) > rowWarningThreshold && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d rows. Consider adding a LIMIT clause.\n\n", len(rows))
	}
	return r.Render(rowMaps(rows))
}

// parseArgs binds integer-looking arguments as int64 and the rest as strings.
func parseArgs(argv []string) []any {
	args := make([]any, len(argv))
	for i, a := range argv {
		if n, err := strconv.ParseInt(a, 10, 64); err == nil {
			args[i] = n
			continue
		}
		args[i] = a
	}
	return args
}

// rowMaps converts rows to renderable maps. Blobs render as hex.
func rowMaps(rows []query.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(row.Values))
		for k, v := range row.Values {
			if b, ok := v.([]byte); ok {
				v = hex.EncodeToString(b)
			}
			m[k] = v
		}
		out[i] = m
	}
	return out
}

// MembersCommand returns the members command.
func MembersCommand() *cli.Command {
	return &cli.Command{
		Name:      "members",
		Usage:     "List the members of a chat room",
		ArgsUsage: "<roomid>",
		Flags:     readFlags(),
		Action:    membersAction,
	}
}

func membersAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("usage: ferry members <roomid>", exitFailure)
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	roomID := c.Args().First()
	members, err := s.resolver().Members(c.Context, roomID)
	if err != nil {
		return err
	}

	view := membersView(roomID, members)
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewMembers, view)
	}
	return r.Render(view.Members)
}

// membersView orders members by wxid.
func membersView(roomID string, members map[string]room.MemberInfo) *tui.MembersView {
	view := &tui.MembersView{RoomID: roomID, Members: make([]tui.MemberRow, 0, len(members))}
	for wxid, info := range members {
		view.Members = append(view.Members, tui.MemberRow{
			Wxid:        wxid,
			NickName:    info.NickName,
			Alias:       info.Alias,
			DisplayName: info.DisplayName,
		})
	}
	sort.Slice(view.Members, func(i, j int) bool {
		return view.Members[i].Wxid < view.Members[j].Wxid
	})
	return view
}
