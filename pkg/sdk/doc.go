// Package autorag provides a Go client for the autorag conversational inventory API.
//
// The client speaks plain HTTP: a batch answer, a server-sent event stream,
// the image resolver and the health report.
//
//	client, _ := autorag.New("http://localhost:8080")
//	ans, _ := client.Ask(ctx, "cheap diesel SUV under 10 lakh")
//	fmt.Println(ans.Answer, len(ans.Cars))
//
// # Streaming
//
//	err := client.Stream(ctx, "recommend a hatchback", nil, func(ev autorag.Event) error {
//	    switch ev.Kind {
//	    case autorag.EventCars:
//	        render(ev.Cars)
//	    case autorag.EventText:
//	        fmt.Print(ev.Text)
//	    }
//	    return nil
//	})
package autorag
