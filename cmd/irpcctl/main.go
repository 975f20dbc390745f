/*Command irpcctl is a thin driver for irpcd: one subcommand per catalog
operation, modeled on irpc_client.c's device-list/descriptor print loop
but dressed in the teacher repository's CLI idiom (colorized status,
column-aligned tables, a spinner around blocking calls).
*/
package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/irpcd/config"
	"github.com/nasa-jpl/irpcd/irpc"
	"github.com/nasa-jpl/irpcd/rpcclient"
	"github.com/nasa-jpl/irpcd/util"
)

// ConfigFileName is the client counterpart of irpcd.yml, read from the
// working directory the same way cmd/multiserver reads its own config.
const ConfigFileName = "irpcctl.yml"

func root() {
	fmt.Println(`irpcctl drives an irpcd server over the network.

Usage:
	irpcctl <command> [args]

Commands:
	list                                   list attached devices
	descriptor <bus> <addr> <nconf> <sess> print a device's descriptor
	open <bus> <addr> <nconf> <sess>       open a device, print its handle
	open-vid-pid <vid> <pid>               open the first device matching vid:pid
	close                                  close the current handle
	claim <iface>                          claim an interface on the current handle
	release <iface>                        release an interface
	get-config                             query the configuration (prints status only)
	set-config <n>                         set the configuration
	set-alt <iface> <alt>                  set an interface's alt setting
	reset                                  reset the current device
	control <reqtype> <req> <val> <idx> <len> <timeoutSecs>
	bulk <endpoint> <len> <timeoutSecs>
	clear-halt <endpoint>
	get-string <index> <len>
	mkconf                                 write the default irpcctl.yml
	conf                                   print the configuration in effect`)
}

func cmdMkconf() {
	if err := config.WriteDefaultClient(ConfigFileName); err != nil {
		log.Fatalf("irpcctl: writing default config: %v", err)
	}
}

func cmdConf() {
	cfg, err := config.LoadClient(ConfigFileName)
	if err != nil {
		log.Fatalf("irpcctl: loading config: %v", err)
	}
	fmt.Printf("%+v\n", cfg)
}

func statusColor(s irpc.Status) string {
	if s == irpc.StatusSuccess {
		return color.GreenString(s.String())
	}
	return color.RedString(s.String())
}

// printTable renders rows of equal-length string columns, aligning on
// rune display width rather than byte length so non-ASCII descriptor
// strings (serial numbers, product names) still line up.
func printTable(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	printRow := func(row []string) {
		for i, cell := range row {
			fmt.Print(runewidth.FillRight(cell, widths[i]+2))
		}
		fmt.Println()
	}
	printRow(header)
	for _, row := range rows {
		printRow(row)
	}
}

// withSpinner runs fn while displaying a spinner, for calls expected to
// block on real USB hardware (control/bulk transfers, reset). Disabled
// automatically when stdout isn't a terminal spinner-friendly stream;
// yacspin degrades to a no-op cleanly in that case.
func withSpinner(message string, fn func() error) error {
	cfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " " + message,
		SuffixAutoColon: true,
	}
	spinner, err := yacspin.New(cfg)
	if err != nil {
		return fn()
	}
	spinner.Start()
	err = fn()
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		return err
	}
	spinner.StopMessage("done")
	spinner.Stop()
	return nil
}

// parseCSVInts parses a comma-separated list of integers, deduping
// repeated values the way a repeated --vid-pid flag might arrive
// doubled from a shell alias.
func parseCSVInts(s string) ([]int, error) {
	r := csv.NewReader(strings.NewReader(s))
	fields, err := r.Read()
	if err != nil {
		return nil, err
	}
	fields = util.UniqueString(fields)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if !util.AllElementsNumbers(f) {
			log.Printf("irpcctl: warning: %q does not look purely numeric", f)
		}
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("irpcctl: %q is not an integer: %w", f, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func mustInt32(s string) int32 {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		log.Fatalf("irpcctl: %q is not an integer: %v", s, err)
	}
	return int32(n)
}

func dial() *rpcclient.Client {
	cfg, err := config.LoadClient(ConfigFileName)
	if err != nil {
		log.Fatalf("irpcctl: loading config: %v", err)
	}
	timeout := util.SecsToDuration(cfg.DialTimeoutSecs)
	c, err := rpcclient.Dial(cfg.Addr, rpcclient.DialConfig{Timeout: timeout, MaxElapsedTime: timeout})
	if err != nil {
		log.Fatalf("irpcctl: dial %s: %v", cfg.Addr, err)
	}
	return c
}

func cmdList() {
	c := dial()
	defer c.Session.Close()
	if _, err := c.Init(); err != nil {
		log.Fatalf("irpcctl: init: %v", err)
	}
	list, err := c.GetDeviceList()
	if err != nil {
		log.Fatalf("irpcctl: list: %v", err)
	}
	rows := make([][]string, 0, len(list.Slots()))
	configCounts := make([]int, 0, len(list.Slots()))
	for _, d := range list.Slots() {
		rows = append(rows, []string{
			strconv.Itoa(int(d.BusNumber)),
			strconv.Itoa(int(d.DeviceAddress)),
			strconv.Itoa(int(d.NumConfigurations)),
			strconv.Itoa(int(d.SessionID)),
		})
		configCounts = append(configCounts, int(d.NumConfigurations))
	}
	printTable([]string{"bus", "addr", "nconf", "session"}, rows)
	fmt.Printf("configuration counts: %s\n", util.IntSliceToCSV(configCounts))
}

func cmdDescriptor(args []string) {
	if len(args) != 4 {
		log.Fatal("irpcctl: descriptor needs <bus> <addr> <nconf> <sess>")
	}
	dev := irpc.DeviceId{
		BusNumber:         mustInt32(args[0]),
		DeviceAddress:     mustInt32(args[1]),
		NumConfigurations: mustInt32(args[2]),
		SessionID:         mustInt32(args[3]),
	}
	c := dial()
	defer c.Session.Close()
	desc, status, err := c.GetDeviceDescriptor(dev)
	if err != nil {
		log.Fatalf("irpcctl: descriptor: %v", err)
	}
	fmt.Printf("status: %s\n", statusColor(status))
	fmt.Printf("vid:pid = %04x:%04x  class=%d subclass=%d protocol=%d  configs=%d\n",
		desc.IdVendor, desc.IdProduct, desc.BDeviceClass, desc.BDeviceSubClass,
		desc.BDeviceProtocol, desc.BNumConfigurations)
}

func cmdOpen(args []string) {
	if len(args) != 4 {
		log.Fatal("irpcctl: open needs <bus> <addr> <nconf> <sess>")
	}
	dev := irpc.DeviceId{
		BusNumber:         mustInt32(args[0]),
		DeviceAddress:     mustInt32(args[1]),
		NumConfigurations: mustInt32(args[2]),
		SessionID:         mustInt32(args[3]),
	}
	c := dial()
	defer c.Session.Close()
	h, status, err := c.Open(dev)
	if err != nil {
		log.Fatalf("irpcctl: open: %v", err)
	}
	fmt.Printf("status: %s  session=%d\n", statusColor(status), h.Device.SessionID)
}

func cmdOpenVIDPID(args []string) {
	if len(args) != 2 {
		log.Fatal("irpcctl: open-vid-pid needs <vid> <pid>")
	}
	vid, pid := mustInt32(args[0]), mustInt32(args[1])
	c := dial()
	defer c.Session.Close()
	h, err := c.OpenWithVIDPID(vid, pid)
	if err != nil {
		log.Fatalf("irpcctl: open-vid-pid: %v", err)
	}
	if h.Device.SessionID == 0 {
		fmt.Println(color.RedString("no matching device"))
		return
	}
	fmt.Printf("session=%d\n", h.Device.SessionID)
}

func cmdClose() {
	c := dial()
	defer c.Session.Close()
	if err := c.Close(); err != nil {
		log.Fatalf("irpcctl: close: %v", err)
	}
}

func cmdHandleInt(name string, args []string, fn func(*rpcclient.Client, irpc.DeviceHandle, int32) (irpc.Status, error)) {
	if len(args) != 1 {
		log.Fatalf("irpcctl: %s needs <value>", name)
	}
	v := mustInt32(args[0])
	c := dial()
	defer c.Session.Close()
	status, err := fn(c, irpc.DeviceHandle{}, v)
	if err != nil {
		log.Fatalf("irpcctl: %s: %v", name, err)
	}
	fmt.Printf("status: %s\n", statusColor(status))
}

func cmdSetAlt(args []string) {
	if len(args) != 2 {
		log.Fatal("irpcctl: set-alt needs <iface> <alt>")
	}
	iface, alt := mustInt32(args[0]), mustInt32(args[1])
	c := dial()
	defer c.Session.Close()
	status, err := c.SetInterfaceAltSetting(irpc.DeviceHandle{}, iface, alt)
	if err != nil {
		log.Fatalf("irpcctl: set-alt: %v", err)
	}
	fmt.Printf("status: %s\n", statusColor(status))
}

func cmdReset() {
	c := dial()
	defer c.Session.Close()
	var status irpc.Status
	err := withSpinner("resetting device", func() error {
		var err error
		status, err = c.ResetDevice(irpc.DeviceHandle{})
		return err
	})
	if err != nil {
		log.Fatalf("irpcctl: reset: %v", err)
	}
	fmt.Printf("status: %s\n", statusColor(status))
}

func cmdControl(args []string) {
	if len(args) != 6 {
		log.Fatal("irpcctl: control needs <reqtype> <req> <val> <idx> <len> <timeoutSecs>")
	}
	ints, err := parseCSVInts(strings.Join(args[:5], ","))
	if err != nil {
		log.Fatalf("irpcctl: %v", err)
	}
	timeoutSecs, err := strconv.ParseFloat(args[5], 64)
	if err != nil {
		log.Fatalf("irpcctl: %q is not a number of seconds: %v", args[5], err)
	}
	c := dial()
	defer c.Session.Close()
	var out irpc.ControlTransferResponse
	err = withSpinner("control transfer", func() error {
		var err error
		out, err = c.ControlTransfer(irpc.DeviceHandle{},
			int32(ints[0]), int32(ints[1]), int32(ints[2]), int32(ints[3]), int32(ints[4]),
			int32(util.SecsToDuration(timeoutSecs)/time.Millisecond))
		return err
	})
	if err != nil {
		log.Fatalf("irpcctl: control: %v", err)
	}
	fmt.Printf("retcode=%d substatus=%d bytes=%d\n", out.Retcode, out.SubStatus, len(out.Data))
}

func cmdBulk(args []string) {
	if len(args) != 3 {
		log.Fatal("irpcctl: bulk needs <endpoint> <len> <timeoutSecs>")
	}
	ep, err := strconv.ParseInt(args[0], 10, 8)
	if err != nil {
		log.Fatalf("irpcctl: %q is not a valid endpoint: %v", args[0], err)
	}
	length := mustInt32(args[1])
	timeoutSecs, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		log.Fatalf("irpcctl: %q is not a number of seconds: %v", args[2], err)
	}
	c := dial()
	defer c.Session.Close()
	var out irpc.BulkTransferResponse
	err = withSpinner("bulk transfer", func() error {
		var err error
		out, err = c.BulkTransfer(irpc.DeviceHandle{}, int8(ep), length,
			int32(util.SecsToDuration(timeoutSecs)/time.Millisecond))
		return err
	})
	if err != nil {
		log.Fatalf("irpcctl: bulk: %v", err)
	}
	fmt.Printf("retcode=%d transferred=%d bytes=%d\n", out.Retcode, out.Transferred, len(out.Data))
}

func cmdClearHalt(args []string) {
	if len(args) != 1 {
		log.Fatal("irpcctl: clear-halt needs <endpoint>")
	}
	ep, err := strconv.ParseInt(args[0], 10, 8)
	if err != nil {
		log.Fatalf("irpcctl: %q is not a valid endpoint: %v", args[0], err)
	}
	allowedEndpoints := []uint{0, 0x81, 0x82, 0x01, 0x02}
	if !util.UintSliceContains(allowedEndpoints, uint(ep)&0xff) {
		log.Printf("irpcctl: warning: endpoint 0x%02x is not in the common set %v", ep, allowedEndpoints)
	}
	c := dial()
	defer c.Session.Close()
	status, err := c.ClearHalt(irpc.DeviceHandle{}, int8(ep))
	if err != nil {
		log.Fatalf("irpcctl: clear-halt: %v", err)
	}
	fmt.Printf("status: %s\n", statusColor(status))
}

func cmdGetString(args []string) {
	if len(args) != 2 {
		log.Fatal("irpcctl: get-string needs <index> <len>")
	}
	index, length := mustInt32(args[0]), mustInt32(args[1])
	c := dial()
	defer c.Session.Close()
	out, err := c.GetStringDescriptorASCII(irpc.DeviceHandle{}, index, length)
	if err != nil {
		log.Fatalf("irpcctl: get-string: %v", err)
	}
	fmt.Printf("retcode=%d %q\n", out.Retcode, string(out.Data))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	rest := args[2:]
	switch strings.ToLower(args[1]) {
	case "help":
		root()
	case "list":
		cmdList()
	case "descriptor":
		cmdDescriptor(rest)
	case "open":
		cmdOpen(rest)
	case "open-vid-pid":
		cmdOpenVIDPID(rest)
	case "close":
		cmdClose()
	case "claim":
		cmdHandleInt("claim", rest, (*rpcclient.Client).ClaimInterface)
	case "release":
		cmdHandleInt("release", rest, (*rpcclient.Client).ReleaseInterface)
	case "get-config":
		cmdHandleInt("get-config", append(rest, "0"), func(c *rpcclient.Client, h irpc.DeviceHandle, _ int32) (irpc.Status, error) {
			return c.GetConfiguration(h)
		})
	case "set-config":
		cmdHandleInt("set-config", rest, (*rpcclient.Client).SetConfiguration)
	case "set-alt":
		cmdSetAlt(rest)
	case "reset":
		cmdReset()
	case "control":
		cmdControl(rest)
	case "bulk":
		cmdBulk(rest)
	case "clear-halt":
		cmdClearHalt(rest)
	case "get-string":
		cmdGetString(rest)
	case "mkconf":
		cmdMkconf()
	case "conf":
		cmdConf()
	default:
		log.Fatalf("irpcctl: unknown command %q", args[1])
	}
}
