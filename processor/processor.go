// Package processor splits documents into translatable segments and
// reassembles them after translation.
package processor

import "github.com/ZaguanLabs/docdedup"

// ContentProcessor is an alias to the main package interface.
type ContentProcessor = docdedup.ContentProcessor

// Segment is an alias to the main package type.
type Segment = docdedup.Segment
