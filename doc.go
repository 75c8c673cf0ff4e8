// Package watchlater curates a YouTube playlist from the recent uploads of
// the signed-in user's subscriptions.
//
// Overview
//
// A run walks a fixed pipeline:
//
//  1. Collect subscribed channels, dropping those on the channel blocklist.
//  2. Resolve each channel's uploads playlist, 50 channels per request.
//  3. Scan every uploads playlist newest first, stopping at the first video
//     older than the cutoff and skipping blocklisted titles.
//  4. Sort all collected videos oldest first.
//  5. Append them to the target playlist in that order.
//
// Quick Start
//
// Sign in once and cache the token, then run the pipeline:
//
//	ctx := context.Background()
//	authn, err := auth.New("client_secret.json", storage.NewTokenStore("token.json"), nil, zerolog.Nop())
//	if err != nil {
//		log.Fatal(err)
//	}
//	httpClient, err := authn.Client(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	yt, err := youtube.NewClient(ctx, option.WithHTTPClient(httpClient))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cutoff, _ := curate.ParseCutoff("2023-08-30", time.Local)
//	c := &curate.Curator{API: yt, Cutoff: cutoff, PlaylistID: "PL..."}
//	report, err := c.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("inserted %d of %d videos\n", report.Inserted, len(report.Videos))
//
// Configuration
//
// The watchlater command reads its settings from several sources:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables (WATCHLATER_SINCE, WATCHLATER_PLAYLIST_ID, ...)
//  3. Config file (watchlater.yaml, .yml or .json in the working directory
//     or ~/.config/watchlater)
//  4. Default values (lowest priority)
//
// Error Handling
//
// Remote failures are *CallError values classified against the sentinels
// re-exported here:
//
//	if errors.Is(err, watchlater.ErrQuotaExceeded) {
//		fmt.Println("daily quota used up, try again tomorrow")
//	}
//
//	var insertErr *watchlater.InsertError
//	if errors.As(err, &insertErr) {
//		fmt.Printf("video %s was not added: %v\n", insertErr.VideoID, insertErr.Err)
//	}
//
// Sub-packages
//
//   - curate: the pipeline stages and the Curator that runs them
//   - youtube: Data API and public feed clients
//   - auth: OAuth consent flow and token refresh
//   - blocklist: channel and title exclusion lists
//   - config: file and environment configuration
//   - storage: token cache with atomic writes and file locking
package watchlater
