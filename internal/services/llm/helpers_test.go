package llm

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nousnews/internal/common"
)

func testLogger() arbor.ILogger {
	return common.GetLogger()
}
