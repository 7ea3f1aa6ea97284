package app

import (
	_ "github.com/prawnloader/prawnloader/plugins/deezer"
	_ "github.com/prawnloader/prawnloader/plugins/youtube"
)
