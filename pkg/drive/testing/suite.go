package testing

import (
	"context"
	"testing"

	"github.com/marmos91/onedrivefs/pkg/drive"
)

// DriveTestSuite is a conformance suite for drive.Drive implementations.
// It tests the interface contract the filesystem adapter relies on, not
// implementation details, so it runs unchanged against the memory drive, the
// Graph client and the S3 drive.
//
// Usage:
//
//	func TestMyDrive(t *testing.T) {
//	    suite := &drivetesting.DriveTestSuite{
//	        NewDrive: func(t *testing.T) drive.Drive {
//	            return mydrive.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type DriveTestSuite struct {
	// NewDrive creates a fresh, empty drive for each test.
	NewDrive func(t *testing.T) drive.Drive

	// SkipFolderCopy disables the folder Copy test for backends without
	// server-side copy of folders.
	SkipFolderCopy bool
}

// Run executes all tests in the suite.
func (suite *DriveTestSuite) Run(t *testing.T) {
	t.Run("Lookup", suite.RunLookupTests)
	t.Run("Content", suite.RunContentTests)
	t.Run("ResumableUpload", suite.RunResumableTests)
	t.Run("Mutations", suite.RunMutationTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
