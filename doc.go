// Package docdedup skips repeated long-document translations.
//
// Every request (a text or a file, a translation service, a source and a
// target language) is reduced to a fingerprint. Before any translation job
// runs, the fingerprint is looked up in a small persistent index mapping it to
// an already produced output file. Only misses run a job; the job's output is
// then registered so the next identical request is served from disk.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/docdedup"
//	    "github.com/ZaguanLabs/docdedup/index"
//	    "github.com/ZaguanLabs/docdedup/processor"
//	    "github.com/ZaguanLabs/docdedup/provider"
//	)
//
//	func main() {
//	    p := provider.NewOpenAIProvider(provider.OpenAIConfig{
//	        APIKey: os.Getenv("OPENAI_API_KEY"),
//	    })
//
//	    t := docdedup.NewSegmentTranslator(p,
//	        docdedup.WithServiceID("openai:gpt-4o-mini"),
//	        docdedup.WithProcessor(processor.NewTextProcessor()),
//	        docdedup.WithProcessor(processor.NewHTMLProcessor()),
//	    )
//
//	    d := docdedup.NewDeduplicator(index.New("data/index.json"))
//	    job := docdedup.NewDocumentJob(t, "data/outputs")
//
//	    // NewRequest keys the request by everything that shapes the output.
//	    req := job.NewRequest(docdedup.ModeFile, "report.txt", "en", "zh")
//	    res, err := d.Translate(context.Background(), req, job)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res.OutputPath, res.Cached)
//	}
package docdedup
