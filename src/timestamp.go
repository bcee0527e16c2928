package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Timestamp provider for the radio-key callback.
 *
 * Description:	Key transitions carry a wall-clock timestamp string so
 *		the remote end can log or align them.  The format is an
 *		strftime pattern for familiarity with every other ham
 *		logging tool in existence.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/strftime"
)

const DefaultTimestampFormat = "%Y-%m-%dT%H:%M:%S"

/*-------------------------------------------------------------------
 *
 * Name:	NewTimestampProvider
 *
 * Purpose:	Compile an strftime pattern into a provider function.
 *
 * Description:	The pattern is compiled once here; the returned
 *		function runs under the engine lock on key transitions
 *		and must stay cheap.
 *
 *--------------------------------------------------------------------*/

func NewTimestampProvider(format string) (func() string, error) {
	if format == "" {
		format = DefaultTimestampFormat
	}
	var f, err = strftime.New(format)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp format %q: %w", format, err)
	}
	return func() string {
		return f.FormatString(time.Now())
	}, nil
}
