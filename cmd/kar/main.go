// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command kar packs compiled shaders, or any other directory, into a kar
// archive and extracts them back.
package main

import (
	"flag"
	"os"
	"os/user"

	log "github.com/sirupsen/logrus"
)

var (
	author   = flag.String("author", currentUserName(), "Set the author of the package when compressing")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the file given")
	compress = flag.String("c", "", "Compress the given file/folder")
	dstFile  = flag.String("f", "out.kar", "Destination file, or directory when extracting")
	list     = flag.String("l", "", "List the contents of the archive given")
	silent   = flag.Bool("s", false, "Silent")
)

func currentUserName() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func main() {
	flag.Parse()
	if *silent {
		log.SetLevel(log.WarnLevel)
	}

	ops := 0
	for _, op := range []string{*extract, *compress, *list} {
		if op != "" {
			ops++
		}
	}
	if ops != 1 {
		flag.PrintDefaults()
		os.Exit(2)
	}

	var err error
	switch {
	case *compress != "":
		err = compressFiles(*compress, *dstFile, *author, *version)
	case *extract != "":
		err = extractFiles(*extract, *dstFile)
	case *list != "":
		err = listFiles(*list, os.Stdout)
	}
	if err != nil {
		log.Fatal(err)
	}
}
