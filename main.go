package main

import (
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/logger"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/obex"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/pbap"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/phonebook"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/progress"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/util"
)

const serverDevice = "local-pse"

func seedStore() *phonebook.MemoryStore {
	store := phonebook.NewMemoryStore("My Phone", "+15550100000")
	store.AddContact("Alice Martin", "+15550100001")
	store.AddContact("Bob Chen", "+15550100002")
	store.AddContact("Carol Diaz", "+1-555-010-0003,42")
	store.AddCall("Alice Martin", "+15550100001", phonebook.CallIncoming, "20260824T091500")
	store.AddCall("Bob Chen", "+15550100002", phonebook.CallMissed, "20260824T101200")
	return store
}

func run() error {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		logger.SetLevel(logger.ParseLevel(lvl))
	}

	db, err := progress.Open(util.GetProgressDBPath())
	if err != nil {
		return err
	}
	defer db.Close()

	handler := pbap.NewHandler(seedStore())
	handler.SetProgressStore(db)

	ln, err := obex.ListenDevice("", serverDevice, pbap.ServiceUUID)
	if err != nil {
		return err
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		return obex.NewServer(handler).Serve(ln)
	})

	client := pbap.NewClient(serverDevice, &obex.SocketDialer{})
	if !client.Connect() {
		ln.Close()
		g.Wait()
		return fmt.Errorf("connect to %s failed", serverDevice)
	}

	book, err := client.PullPhonebook(pbap.PathPhonebook, 0x0000000000000003)
	if err != nil {
		logger.Error("Demo", "pull phonebook: %v", err)
	} else {
		fmt.Print(book)
	}

	params := pbap.NewAppParams()
	params.Order = pbap.OrderAlphanumeric
	listing, err := client.PullVcardListing("telecom/pb", params)
	if err != nil {
		logger.Error("Demo", "pull listing: %v", err)
	} else {
		fmt.Print(listing)
	}

	client.Disconnect()
	ln.Close()
	return g.Wait()
}

func main() {
	if err := run(); err != nil {
		logger.Error("Demo", "%v", err)
		os.Exit(1)
	}
}
